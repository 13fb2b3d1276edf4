package models

// -----------------------------------------------------------------------------
// Signal model
// -----------------------------------------------------------------------------

// MDirection is the binary call a signal makes.
type MDirection string

const (
	DirectionBuy  MDirection = "BUY"
	DirectionSell MDirection = "SELL"
)

// Opposite returns the flipped direction.
func (d MDirection) Opposite() MDirection {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// -----------------------------------------------------------------------------

// MSignalStatus is the user-reported outcome of a signal.
type MSignalStatus string

const (
	StatusPending   MSignalStatus = "PENDING"
	StatusConfirmed MSignalStatus = "CONFIRMED"
	StatusFailed    MSignalStatus = "FAILED"
)

// -----------------------------------------------------------------------------

// MSignal is one produced recommendation. Created once per analysis cycle;
// only Status mutates afterwards, via SignalEngine.RecordFeedback.
type MSignal struct {
	ID          string        `json:"id"`
	Instrument  string        `json:"asset"` // display name, e.g. "EUR/USD"
	Timeframe   string        `json:"timeframe"`
	Direction   MDirection    `json:"direction"`
	Probability int           `json:"probability"`
	Timestamp   int64         `json:"timestamp"` // epoch millis
	Status      MSignalStatus `json:"status"`
}
