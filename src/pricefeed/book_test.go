package pricefeed

import (
	"math"
	"strings"
	"testing"

	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------

var testCatalog = []models.MInstrument{
	{ID: "f1", Name: "EUR/USD", Type: models.InstrumentForex, Price: "1,08432", Change: "+0,12%"},
	{ID: "c1", Name: "BTC/USDT", Type: models.InstrumentCrypto, Price: "50000,00", Change: "+1,5%"},
	{ID: "m1", Name: "XAU/USD", Type: models.InstrumentMetals, Price: "2312,40", Change: "-0,3%"},
}

// -----------------------------------------------------------------------------

func TestPriceStringHelpers(t *testing.T) {
	tests := []struct {
		in        string
		want      float64
		precision int
	}{
		{"1,08432", 1.08432, 5},
		{"50000,00", 50000.0, 2},
		{"2312,40", 2312.4, 2},
		{"7", 7, 2}, // no separator, default precision
	}

	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if err != nil {
			t.Errorf("ParsePrice(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if p := PrecisionOf(tt.in); p != tt.precision {
			t.Errorf("PrecisionOf(%q) = %d, want %d", tt.in, p, tt.precision)
		}
	}

	if got := FormatPrice(1.08432, 5); got != "1,08432" {
		t.Errorf("FormatPrice(1.08432, 5) = %q", got)
	}
	if got := FormatPrice(50000.126, 2); got != "50000,13" {
		t.Errorf("FormatPrice(50000.126, 2) = %q", got)
	}
}

// -----------------------------------------------------------------------------

func TestSnapshotSeededFromCatalog(t *testing.T) {
	b := NewLivePriceBook(testCatalog)

	snap := b.Snapshot()
	if len(snap) != len(testCatalog) {
		t.Fatalf("snapshot size = %d, want %d", len(snap), len(testCatalog))
	}
	if snap["f1"].Price != "1,08432" {
		t.Errorf("seed price = %q, want catalog value", snap["f1"].Price)
	}
	if snap["f1"].LastTick != models.TickUnknown {
		t.Errorf("seed tick = %q, want unknown", snap["f1"].LastTick)
	}
}

// -----------------------------------------------------------------------------

func TestApplyQuoteTickDirection(t *testing.T) {
	b := NewLivePriceBook(testCatalog)
	inst := testCatalog[1] // c1, seeded 50000,00

	up := b.ApplyQuote(inst, 50000.12, 2)
	if up.Price != "50000,12" || up.LastTick != models.TickUp {
		t.Fatalf("after rise: %+v, want 50000,12 / up", up)
	}

	down := b.ApplyQuote(inst, 50000.05, 2)
	if down.Price != "50000,05" || down.LastTick != models.TickDown {
		t.Fatalf("after fall: %+v, want 50000,05 / down", down)
	}

	// Equal price carries the previous tick forward.
	same := b.ApplyQuote(inst, 50000.05, 2)
	if same.LastTick != models.TickDown {
		t.Fatalf("after flat quote: tick = %q, want carried down", same.LastTick)
	}
}

// -----------------------------------------------------------------------------

func TestApplyQuoteForexPrecision(t *testing.T) {
	b := NewLivePriceBook(testCatalog)
	inst := testCatalog[0] // f1

	entry := b.ApplyQuote(inst, 1.0855512, PrecisionFor(inst.Type))
	if entry.Price != "1,08555" {
		t.Fatalf("forex quote rendered as %q, want 5 decimals", entry.Price)
	}
}

// -----------------------------------------------------------------------------

func TestSimulateStaysWithinJitterBound(t *testing.T) {
	b := NewLivePriceBook(testCatalog)
	inst := testCatalog[0] // f1, seeded 1,08432

	prev := 1.08432
	for i := 0; i < 200; i++ {
		entry := b.Simulate(inst)

		if idx := strings.Index(entry.Price, ","); len(entry.Price)-idx-1 != 5 {
			t.Fatalf("simulated price %q lost precision", entry.Price)
		}

		got, err := ParsePrice(entry.Price)
		if err != nil {
			t.Fatalf("ParsePrice(%q) error: %v", entry.Price, err)
		}

		// Raw jitter is bounded by half of jitterSpan; rounding at 5
		// decimals can add up to half an ULP on top.
		bound := prev*jitterSpan/2 + 0.000005
		if math.Abs(got-prev) > bound {
			t.Fatalf("move %v -> %v exceeds jitter bound %v", prev, got, bound)
		}

		if entry.LastTick != models.TickUp && entry.LastTick != models.TickDown {
			t.Fatalf("simulated tick = %q, want up or down", entry.LastTick)
		}
		prev = got
	}
}

// -----------------------------------------------------------------------------

func TestSimulateTickMatchesJitterSign(t *testing.T) {
	b := NewLivePriceBook(testCatalog)
	inst := testCatalog[1] // c1, coarse precision so moves can round away

	// The tick reflects the raw jitter sign even when rounding leaves the
	// rendered price unchanged, so both directions must appear over time.
	seen := make(map[models.MTick]bool)
	for i := 0; i < 200; i++ {
		entry := b.Simulate(inst)
		seen[entry.LastTick] = true
		if seen[models.TickUp] && seen[models.TickDown] {
			return
		}
	}
	t.Fatalf("only %v seen in 200 simulated moves", seen)
}
