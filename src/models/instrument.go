package models

// -----------------------------------------------------------------------------
// Instrument catalog entries and the live price overlay built on top of them.
// -----------------------------------------------------------------------------

// MInstrumentType is the closed set of instrument categories.
type MInstrumentType string

const (
	InstrumentForex  MInstrumentType = "FOREX"  // currency pairs
	InstrumentCrypto MInstrumentType = "CRYPTO" // digital assets
	InstrumentMetals MInstrumentType = "METALS" // precious metals
)

// -----------------------------------------------------------------------------

// MInstrument is an immutable catalog entry. Price and Change are the seed
// values the live price book starts from; the catalog itself is never updated
// at runtime.
type MInstrument struct {
	ID     string          `yaml:"id" json:"id"`
	Name   string          `yaml:"name" json:"name"`
	Type   MInstrumentType `yaml:"type" json:"type"`
	Price  string          `yaml:"price" json:"price"`
	Change string          `yaml:"change" json:"change"`
}

// -----------------------------------------------------------------------------

// MTick is the direction of the last price movement versus the cached value.
type MTick string

const (
	TickUp      MTick = "up"
	TickDown    MTick = "down"
	TickUnknown MTick = "" // no tick observed yet
)

// -----------------------------------------------------------------------------

// MLivePrice is the transient per-instrument quote the renderer reads.
// Rebuilt from the catalog at startup, then continuously overwritten.
type MLivePrice struct {
	Price    string `json:"price"`
	LastTick MTick  `json:"lastTick"`
	Change   string `json:"change"`
}
