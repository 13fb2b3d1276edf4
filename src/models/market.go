package models

// -----------------------------------------------------------------------------
// Market status read models
// -----------------------------------------------------------------------------

// MCountdown is a split duration for countdown displays.
type MCountdown struct {
	D int `json:"d"`
	H int `json:"h"`
	M int `json:"m"`
	S int `json:"s"`
}

// -----------------------------------------------------------------------------

// MMarketStatus is one exchange row of the /api/markets read model.
type MMarketStatus struct {
	Mic      string `json:"mic"`
	Name     string `json:"name"`
	Open     bool   `json:"open"`
	Business bool   `json:"business"` // trading day, regardless of the hour
}
