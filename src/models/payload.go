package models

// -----------------------------------------------------------------------------
// Wire payloads for the WebSocket push channel
// -----------------------------------------------------------------------------

// MPricePayload is one live-price broadcast frame.
type MPricePayload struct {
	Type      string                `json:"type"` // "INITIAL" or "UPDATE"
	Prices    map[string]MLivePrice `json:"prices"`
	Timestamp int64                 `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MSubscribeCommand is the only client message the hub understands.
type MSubscribeCommand struct {
	Command  string          `json:"command"`
	Category MInstrumentType `json:"category"`
	IDs      []string        `json:"ids"`
}
