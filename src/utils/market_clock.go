package utils

import (
	"time"

	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// MarketClock decides whether the currency-pair week is open and how long
// until it reopens. The rule is a fixed day-of-week check: the week closes
// for Friday, Saturday and Sunday and reopens Monday at local midnight.
// -----------------------------------------------------------------------------

type MarketClock struct {
	Now func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketClock() *MarketClock {
	return &MarketClock{Now: time.Now}
}

// -----------------------------------------------------------------------------

// ForexClosed reports whether the currency-pair market is closed right now.
func (mc *MarketClock) ForexClosed() bool {
	switch mc.Now().Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

// NextForexOpen returns the upcoming Monday at 00:00 local time.
func (mc *MarketClock) NextForexOpen() time.Time {
	now := mc.Now()

	var daysToAdd int
	switch now.Weekday() {
	case time.Friday:
		daysToAdd = 3
	case time.Saturday:
		daysToAdd = 2
	default:
		daysToAdd = 1
	}

	open := now.AddDate(0, 0, daysToAdd)
	return time.Date(open.Year(), open.Month(), open.Day(), 0, 0, 0, 0, open.Location())
}

// -----------------------------------------------------------------------------

// ForexCountdown splits the time remaining until the next open into
// d/h/m/s display fields. All zero when the market is open.
func (mc *MarketClock) ForexCountdown() models.MCountdown {
	if !mc.ForexClosed() {
		return models.MCountdown{}
	}

	diff := mc.NextForexOpen().Sub(mc.Now())
	if diff <= 0 {
		return models.MCountdown{}
	}

	secs := int(diff.Seconds())
	return models.MCountdown{
		D: secs / 86400,
		H: (secs / 3600) % 24,
		M: (secs / 60) % 60,
		S: secs % 60,
	}
}
