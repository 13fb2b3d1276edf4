package pricefeed

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// LivePriceBook is the shared per-instrument quote cache. It is partitioned
// by category: each category has its own lock and its own writer goroutine,
// and categories never share instruments, so writers never contend.
// -----------------------------------------------------------------------------

// jitterSpan is the full width of the simulator's proportional jitter.
// (rand-0.5)*price*jitterSpan keeps every simulated move within +-0.005%.
const jitterSpan = 0.0001

// -----------------------------------------------------------------------------

type partition struct {
	mu      sync.RWMutex
	entries map[string]models.MLivePrice
}

type LivePriceBook struct {
	parts map[models.MInstrumentType]*partition
}

// -----------------------------------------------------------------------------

// NewLivePriceBook seeds the cache from the instrument catalog.
func NewLivePriceBook(instruments []models.MInstrument) *LivePriceBook {
	b := &LivePriceBook{
		parts: map[models.MInstrumentType]*partition{
			models.InstrumentForex:  {entries: make(map[string]models.MLivePrice)},
			models.InstrumentCrypto: {entries: make(map[string]models.MLivePrice)},
			models.InstrumentMetals: {entries: make(map[string]models.MLivePrice)},
		},
	}

	for _, inst := range instruments {
		p := b.parts[inst.Type]
		if p == nil {
			continue
		}
		p.entries[inst.ID] = models.MLivePrice{
			Price:    inst.Price,
			LastTick: models.TickUnknown,
			Change:   inst.Change,
		}
	}

	return b
}

// -----------------------------------------------------------------------------

// Get returns the cached entry for one instrument.
func (b *LivePriceBook) Get(inst models.MInstrument) (models.MLivePrice, bool) {
	p := b.parts[inst.Type]
	if p == nil {
		return models.MLivePrice{}, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[inst.ID]
	return entry, ok
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy of every cached entry keyed by instrument id.
func (b *LivePriceBook) Snapshot() map[string]models.MLivePrice {
	out := make(map[string]models.MLivePrice)
	for _, p := range b.parts {
		p.mu.RLock()
		for id, entry := range p.entries {
			out[id] = entry
		}
		p.mu.RUnlock()
	}
	return out
}

// -----------------------------------------------------------------------------

// ApplyQuote overwrites an instrument's entry with a fresh upstream value,
// rendered at the category's fixed precision. The tick compares against the
// previous cached value; an unchanged price carries the old tick forward.
func (b *LivePriceBook) ApplyQuote(inst models.MInstrument, value float64, precision int) models.MLivePrice {
	p := b.parts[inst.Type]
	if p == nil {
		return models.MLivePrice{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.entries[inst.ID]
	if !ok {
		prev = models.MLivePrice{Price: inst.Price, Change: inst.Change}
	}

	oldVal, _ := ParsePrice(prev.Price)

	tick := prev.LastTick
	if value > oldVal {
		tick = models.TickUp
	} else if value < oldVal {
		tick = models.TickDown
	}

	entry := models.MLivePrice{
		Price:    FormatPrice(value, precision),
		LastTick: tick,
		Change:   prev.Change,
	}
	p.entries[inst.ID] = entry
	return entry
}

// -----------------------------------------------------------------------------

// Simulate perturbs the cached price by a small proportional jitter and
// re-renders it at the precision the cached string already carries, so
// simulated values never gain or lose digits relative to the last real quote.
func (b *LivePriceBook) Simulate(inst models.MInstrument) models.MLivePrice {
	p := b.parts[inst.Type]
	if p == nil {
		return models.MLivePrice{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.entries[inst.ID]
	if !ok {
		prev = models.MLivePrice{Price: inst.Price, Change: inst.Change}
	}

	val, err := ParsePrice(prev.Price)
	if err != nil {
		// Unparseable cache entry, leave it alone
		p.entries[inst.ID] = prev
		return prev
	}

	jitter := (rand.Float64() - 0.5) * val * jitterSpan

	tick := models.TickDown
	if jitter > 0 {
		tick = models.TickUp
	}

	entry := models.MLivePrice{
		Price:    FormatPrice(val+jitter, PrecisionOf(prev.Price)),
		LastTick: tick,
		Change:   prev.Change,
	}
	p.entries[inst.ID] = entry
	return entry
}

// -----------------------------------------------------------------------------
// Price string helpers (comma decimal convention)
// -----------------------------------------------------------------------------

// ParsePrice converts a comma-decimal display string to a float.
func ParsePrice(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// -----------------------------------------------------------------------------

// FormatPrice renders a value at a fixed precision with a comma separator.
func FormatPrice(v float64, precision int) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', precision, 64), ".", ",", 1)
}

// -----------------------------------------------------------------------------

// PrecisionOf derives the decimal precision carried by a cached price string.
func PrecisionOf(s string) int {
	idx := strings.Index(s, ",")
	if idx < 0 || idx == len(s)-1 {
		return 2
	}
	return len(s) - idx - 1
}

// -----------------------------------------------------------------------------

// PrecisionFor is the fixed render precision per category for real quotes.
func PrecisionFor(t models.MInstrumentType) int {
	if t == models.InstrumentForex {
		return 5
	}
	return 2
}
