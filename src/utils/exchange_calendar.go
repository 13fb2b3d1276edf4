package utils

import (
	"time"

	"signal-desk/src/models"

	"github.com/scmhub/calendar"
)

// -----------------------------------------------------------------------------
// ExchangeCalendar builds the /api/markets read model from scmhub/calendar.
// Purely informational: the feed's own closure rule lives in MarketClock.
// -----------------------------------------------------------------------------

type exchangeRef struct {
	mic  string
	name string
}

// Major venues shown on the market status panel, by MIC (ISO 10383).
var trackedExchanges = []exchangeRef{
	{"xnys", "New York"},
	{"xlon", "London"},
	{"xfra", "Frankfurt"},
	{"xtks", "Tokyo"},
	{"xhkg", "Hong Kong"},
}

// -----------------------------------------------------------------------------

type ExchangeCalendar struct {
	Now func() time.Time
}

// -----------------------------------------------------------------------------

func NewExchangeCalendar() *ExchangeCalendar {
	return &ExchangeCalendar{Now: time.Now}
}

// -----------------------------------------------------------------------------

// Statuses returns open/closed status for every tracked venue. Venues whose
// calendar cannot be loaded fall back to a Mon-Fri business-day check.
func (ec *ExchangeCalendar) Statuses() []models.MMarketStatus {
	now := ec.Now().UTC()

	out := make([]models.MMarketStatus, 0, len(trackedExchanges))
	for _, ref := range trackedExchanges {
		status := models.MMarketStatus{Mic: ref.mic, Name: ref.name}

		cal := calendar.GetCalendar(ref.mic)
		if cal != nil {
			local := now.In(cal.Loc)
			status.Business = cal.IsBusinessDay(local)
			status.Open = cal.IsOpen(local)
		} else {
			wd := now.Weekday()
			status.Business = wd != time.Saturday && wd != time.Sunday
			status.Open = status.Business
		}

		out = append(out, status)
	}

	return out
}
