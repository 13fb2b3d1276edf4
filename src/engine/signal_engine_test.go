package engine

import (
	"errors"
	"io"
	"regexp"
	"testing"

	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// In-memory IStateStore for tests
// -----------------------------------------------------------------------------

type memStore struct {
	signals []models.MSignal
	loadErr error
}

func (m *memStore) Initialize() error { return nil }

func (m *memStore) LoadEntitlement() (models.MEntitlementState, bool, error) {
	return models.MEntitlementState{}, false, nil
}

func (m *memStore) SaveEntitlement(state models.MEntitlementState) error { return nil }

func (m *memStore) SaveSignal(signal models.MSignal) error {
	for i := range m.signals {
		if m.signals[i].ID == signal.ID {
			m.signals[i] = signal
			return nil
		}
	}
	m.signals = append(m.signals, signal)
	return nil
}

func (m *memStore) LoadSignals() ([]models.MSignal, error) { return m.signals, m.loadErr }

func (m *memStore) Close() error { return nil }

// -----------------------------------------------------------------------------

func newTestEngine(t *testing.T, disk *memStore) *SignalEngine {
	t.Helper()
	e := NewSignalEngine(disk, logger.NewLoggerTo(io.Discard, "test"))
	e.Load()
	return e
}

// -----------------------------------------------------------------------------

var signalIDPattern = regexp.MustCompile(`^INF-[0-9A-F]{8}$`)

func TestSignalShape(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	s := e.CreateSignal("BTC/USDT", "5m", nil, "")

	if !signalIDPattern.MatchString(s.ID) {
		t.Errorf("ID = %q, want INF- plus 8 uppercase hex chars", s.ID)
	}
	if s.Instrument != "BTC/USDT" || s.Timeframe != "5m" {
		t.Errorf("pair = %s/%s, want BTC/USDT/5m", s.Instrument, s.Timeframe)
	}
	if s.Status != models.StatusPending {
		t.Errorf("Status = %s, want PENDING", s.Status)
	}
	if s.Direction != models.DirectionBuy && s.Direction != models.DirectionSell {
		t.Errorf("Direction = %q, want BUY or SELL", s.Direction)
	}
	if s.Timestamp == 0 {
		t.Error("Timestamp not set")
	}
}

// -----------------------------------------------------------------------------

func TestProbabilityBounds(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		s := e.CreateSignal("EUR/USD", "1m", nil, "")
		if s.Probability < 85 || s.Probability > 96 {
			t.Fatalf("Probability = %d, want 85..96", s.Probability)
		}
		seen[s.Probability] = true
	}

	// Over 500 draws every value in the range should show up.
	for p := 85; p <= 96; p++ {
		if !seen[p] {
			t.Errorf("probability %d never drawn in 500 signals", p)
		}
	}
}

// -----------------------------------------------------------------------------

func TestFailedFeedbackFlipsDirection(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	first := e.CreateSignal("EUR/USD", "1m", nil, "")
	rated, err := e.RecordFeedback(first.ID, models.StatusFailed)
	if err != nil {
		t.Fatalf("RecordFeedback() error: %v", err)
	}

	second := e.CreateSignal("EUR/USD", "1m", &rated, models.StatusFailed)
	if second.Direction != first.Direction.Opposite() {
		t.Fatalf("direction after FAILED = %s, want %s", second.Direction, first.Direction.Opposite())
	}
}

// -----------------------------------------------------------------------------

func TestConfirmedFeedbackRepeatsDirection(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	first := e.CreateSignal("EUR/USD", "1m", nil, "")
	rated, err := e.RecordFeedback(first.ID, models.StatusConfirmed)
	if err != nil {
		t.Fatalf("RecordFeedback() error: %v", err)
	}

	second := e.CreateSignal("EUR/USD", "1m", &rated, models.StatusConfirmed)
	if second.Direction != first.Direction {
		t.Fatalf("direction after CONFIRMED = %s, want %s", second.Direction, first.Direction)
	}
}

// -----------------------------------------------------------------------------

func TestNoBiasGivesRandomDirection(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	// Without a rated predecessor the direction is a coin toss; over many
	// draws both sides must appear.
	seen := make(map[models.MDirection]bool)
	for i := 0; i < 200; i++ {
		s := e.CreateSignal("EUR/USD", "1m", nil, "")
		seen[s.Direction] = true
		if len(seen) == 2 {
			return
		}
	}
	t.Fatalf("only %v drawn in 200 unbiased signals", seen)
}

// -----------------------------------------------------------------------------

func TestPendingPredecessorGivesRandomDirection(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	prev := e.CreateSignal("EUR/USD", "1m", nil, "")

	// A predecessor that was never rated carries no bias either.
	seen := make(map[models.MDirection]bool)
	for i := 0; i < 200; i++ {
		s := e.CreateSignal("EUR/USD", "1m", &prev, "")
		seen[s.Direction] = true
		if len(seen) == 2 {
			return
		}
	}
	t.Fatalf("only %v drawn in 200 signals after a pending predecessor", seen)
}

// -----------------------------------------------------------------------------

func TestRecordFeedback(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	s := e.CreateSignal("XAU/USD", "15m", nil, "")

	updated, err := e.RecordFeedback(s.ID, models.StatusConfirmed)
	if err != nil {
		t.Fatalf("RecordFeedback() error: %v", err)
	}
	if updated.Status != models.StatusConfirmed {
		t.Fatalf("Status = %s, want CONFIRMED", updated.Status)
	}

	// History keeps the updated entry in place.
	history := e.History()
	if len(history) != 1 || history[0].Status != models.StatusConfirmed {
		t.Fatalf("history = %+v, want single confirmed entry", history)
	}
}

// -----------------------------------------------------------------------------

func TestRecordFeedbackErrors(t *testing.T) {
	e := newTestEngine(t, &memStore{})
	s := e.CreateSignal("XAU/USD", "15m", nil, "")

	if _, err := e.RecordFeedback("INF-DEADBEEF", models.StatusConfirmed); !errors.Is(err, ErrSignalNotFound) {
		t.Fatalf("unknown id error = %v, want ErrSignalNotFound", err)
	}
	if _, err := e.RecordFeedback(s.ID, models.StatusPending); err == nil {
		t.Fatal("PENDING accepted as outcome, want error")
	}
}

// -----------------------------------------------------------------------------

func TestHistoryNewestFirst(t *testing.T) {
	e := newTestEngine(t, &memStore{})

	a := e.CreateSignal("EUR/USD", "1m", nil, "")
	b := e.CreateSignal("BTC/USDT", "5m", nil, "")

	history := e.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].ID != b.ID || history[1].ID != a.ID {
		t.Fatalf("history order = [%s %s], want newest first [%s %s]", history[0].ID, history[1].ID, b.ID, a.ID)
	}
}

// -----------------------------------------------------------------------------

func TestLoadRestoresHistory(t *testing.T) {
	disk := &memStore{}
	e := newTestEngine(t, disk)
	s := e.CreateSignal("EUR/USD", "1m", nil, "")

	if _, err := e.RecordFeedback(s.ID, models.StatusFailed); err != nil {
		t.Fatalf("RecordFeedback() error: %v", err)
	}

	restarted := newTestEngine(t, disk)
	history := restarted.History()
	if len(history) != 1 || history[0].ID != s.ID {
		t.Fatalf("restored history = %+v, want the persisted signal", history)
	}
}

// -----------------------------------------------------------------------------

func TestRestoredHistoryCarriesNoBias(t *testing.T) {
	disk := &memStore{}
	e := newTestEngine(t, disk)
	s := e.CreateSignal("EUR/USD", "1m", nil, "")
	if _, err := e.RecordFeedback(s.ID, models.StatusFailed); err != nil {
		t.Fatalf("RecordFeedback() error: %v", err)
	}

	// A fresh engine sees the persisted FAILED entry in its history, but the
	// first signal of the new process is still an unbiased coin toss.
	restarted := newTestEngine(t, disk)
	seen := make(map[models.MDirection]bool)
	for i := 0; i < 200; i++ {
		next := restarted.CreateSignal("EUR/USD", "1m", nil, "")
		seen[next.Direction] = true
		if len(seen) == 2 {
			return
		}
	}
	t.Fatalf("only %v drawn after restart, want both directions", seen)
}
