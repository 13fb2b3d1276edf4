package storage

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------

func newTestDB(t *testing.T) *SQLiteStateDB {
	t.Helper()

	cfg := &models.MConfig{
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath: filepath.Join(t.TempDir(), "state.db"),
		},
	}

	db, err := NewSQLiteStateDB(cfg, logger.NewLoggerTo(io.Discard, "test"))
	if err != nil {
		t.Fatalf("NewSQLiteStateDB() error: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// -----------------------------------------------------------------------------

func TestLoadEntitlementEmpty(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.LoadEntitlement()
	if err != nil {
		t.Fatalf("LoadEntitlement() error: %v", err)
	}
	if ok {
		t.Fatal("LoadEntitlement() found state in fresh db")
	}
}

// -----------------------------------------------------------------------------

func TestEntitlementRoundTrip(t *testing.T) {
	db := newTestDB(t)

	want := models.MEntitlementState{
		Tier:        models.TierElite,
		SignalsUsed: 7,
		LastReset:   time.Now().UnixMilli(),
	}
	if err := db.SaveEntitlement(want); err != nil {
		t.Fatalf("SaveEntitlement() error: %v", err)
	}

	got, ok, err := db.LoadEntitlement()
	if err != nil {
		t.Fatalf("LoadEntitlement() error: %v", err)
	}
	if !ok {
		t.Fatal("LoadEntitlement() found nothing after save")
	}
	if got != want {
		t.Fatalf("LoadEntitlement() = %+v, want %+v", got, want)
	}

	// Second save overwrites in place.
	want.SignalsUsed = 8
	if err := db.SaveEntitlement(want); err != nil {
		t.Fatalf("SaveEntitlement() update error: %v", err)
	}
	got, _, _ = db.LoadEntitlement()
	if got.SignalsUsed != 8 {
		t.Fatalf("SignalsUsed = %d after update, want 8", got.SignalsUsed)
	}
}

// -----------------------------------------------------------------------------

func TestSignalRoundTrip(t *testing.T) {
	db := newTestDB(t)

	first := models.MSignal{
		ID:          "INF-AAAA1111",
		Instrument:  "EUR/USD",
		Timeframe:   "1m",
		Direction:   models.DirectionBuy,
		Probability: 91,
		Timestamp:   1000,
		Status:      models.StatusPending,
	}
	second := models.MSignal{
		ID:          "INF-BBBB2222",
		Instrument:  "BTC/USDT",
		Timeframe:   "5m",
		Direction:   models.DirectionSell,
		Probability: 88,
		Timestamp:   2000,
		Status:      models.StatusPending,
	}

	if err := db.SaveSignal(first); err != nil {
		t.Fatalf("SaveSignal() error: %v", err)
	}
	if err := db.SaveSignal(second); err != nil {
		t.Fatalf("SaveSignal() error: %v", err)
	}

	// Re-saving with a new status updates the row instead of duplicating it.
	first.Status = models.StatusFailed
	if err := db.SaveSignal(first); err != nil {
		t.Fatalf("SaveSignal() update error: %v", err)
	}

	signals, err := db.LoadSignals()
	if err != nil {
		t.Fatalf("LoadSignals() error: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("LoadSignals() = %d rows, want 2", len(signals))
	}

	// Newest first.
	if signals[0].ID != second.ID || signals[1].ID != first.ID {
		t.Fatalf("order = [%s %s], want newest first", signals[0].ID, signals[1].ID)
	}
	if signals[1].Status != models.StatusFailed {
		t.Fatalf("updated status = %s, want FAILED", signals[1].Status)
	}
	if signals[0] != second {
		t.Fatalf("row = %+v, want %+v", signals[0], second)
	}
}
