package entitlement

import (
	"errors"
	"io"
	"testing"
	"time"

	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// In-memory IStateStore for tests
// -----------------------------------------------------------------------------

type memStore struct {
	state    models.MEntitlementState
	hasState bool
	signals  []models.MSignal
	saveErr  error
}

func (m *memStore) Initialize() error { return nil }

func (m *memStore) LoadEntitlement() (models.MEntitlementState, bool, error) {
	return m.state, m.hasState, nil
}

func (m *memStore) SaveEntitlement(state models.MEntitlementState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = state
	m.hasState = true
	return nil
}

func (m *memStore) SaveSignal(signal models.MSignal) error { return nil }

func (m *memStore) LoadSignals() ([]models.MSignal, error) { return m.signals, nil }

func (m *memStore) Close() error { return nil }

// -----------------------------------------------------------------------------

func newTestStore(t *testing.T, disk *memStore) *Store {
	t.Helper()
	s := NewStore(disk, logger.NewLoggerTo(io.Discard, "test"))
	s.Load()
	return s
}

// -----------------------------------------------------------------------------

func TestStandardQuota(t *testing.T) {
	s := newTestStore(t, &memStore{})

	for i := 0; i < 20; i++ {
		if !s.TryConsume() {
			t.Fatalf("consume %d denied, want approved", i+1)
		}
	}
	if s.TryConsume() {
		t.Fatal("consume 21 approved, want denied")
	}
	if got := s.Remaining(); got != 0 {
		t.Fatalf("Remaining() = %d, want 0", got)
	}
}

// -----------------------------------------------------------------------------

func TestStandardNeverAutoResets(t *testing.T) {
	s := newTestStore(t, &memStore{})

	now := time.Now()
	s.Now = func() time.Time { return now }

	for i := 0; i < 20; i++ {
		s.TryConsume()
	}

	// Even two days later the standard tier stays exhausted.
	now = now.Add(48 * time.Hour)
	if s.TryConsume() {
		t.Fatal("standard tier reset after 48h, want exhausted forever")
	}
}

// -----------------------------------------------------------------------------

func TestEliteResetsAfterWindow(t *testing.T) {
	s := newTestStore(t, &memStore{})

	now := time.Now()
	s.Now = func() time.Time { return now }

	if _, err := s.Upgrade("2741520"); err != nil {
		t.Fatalf("Upgrade() error: %v", err)
	}

	for i := 0; i < 50; i++ {
		if !s.TryConsume() {
			t.Fatalf("consume %d denied, want approved", i+1)
		}
	}
	if s.TryConsume() {
		t.Fatal("consume 51 approved, want denied")
	}

	// One second short of the window: still denied.
	now = now.Add(24*time.Hour - time.Second)
	if s.TryConsume() {
		t.Fatal("approved before window elapsed")
	}

	// Past the window: counter resets.
	now = now.Add(2 * time.Second)
	if !s.TryConsume() {
		t.Fatal("denied after window elapsed, want approved")
	}
	if got := s.Snapshot().SignalsUsed; got != 1 {
		t.Fatalf("SignalsUsed = %d after reset, want 1", got)
	}
}

// -----------------------------------------------------------------------------

func TestUpgrade(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		wantTier   models.MTier
		wantErr    bool
	}{
		{"elite", "2741520", models.TierElite, false},
		{"vip", "1448135", models.TierVIP, false},
		{"wrong digits", "0000000", "", true},
		{"empty", "", "", true},
		{"prefix only", "274152", "", true},
		{"trailing space", "2741520 ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, &memStore{})

			tier, err := s.Upgrade(tt.passphrase)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPassphrase) {
					t.Fatalf("Upgrade(%q) error = %v, want ErrInvalidPassphrase", tt.passphrase, err)
				}
				if got := s.Snapshot().Tier; got != models.TierStandard {
					t.Fatalf("tier changed to %s on rejected passphrase", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Upgrade(%q) error: %v", tt.passphrase, err)
			}
			if tier != tt.wantTier {
				t.Fatalf("Upgrade(%q) = %s, want %s", tt.passphrase, tier, tt.wantTier)
			}
		})
	}
}

// -----------------------------------------------------------------------------

func TestUpgradeResetsCounters(t *testing.T) {
	s := newTestStore(t, &memStore{})

	for i := 0; i < 5; i++ {
		s.TryConsume()
	}

	if _, err := s.Upgrade("2741520"); err != nil {
		t.Fatalf("Upgrade() error: %v", err)
	}

	state := s.Snapshot()
	if state.SignalsUsed != 0 {
		t.Fatalf("SignalsUsed = %d after upgrade, want 0", state.SignalsUsed)
	}
	if got := s.Remaining(); got != 50 {
		t.Fatalf("Remaining() = %d after upgrade, want 50", got)
	}
}

// -----------------------------------------------------------------------------

func TestVIPUnbounded(t *testing.T) {
	s := newTestStore(t, &memStore{})

	if _, err := s.Upgrade("1448135"); err != nil {
		t.Fatalf("Upgrade() error: %v", err)
	}
	if got := s.Remaining(); got != -1 {
		t.Fatalf("Remaining() = %d for VIP, want -1", got)
	}

	for i := 0; i < 200; i++ {
		if !s.TryConsume() {
			t.Fatalf("VIP consume %d denied", i+1)
		}
	}
}

// -----------------------------------------------------------------------------

func TestManualReset(t *testing.T) {
	s := newTestStore(t, &memStore{})

	if err := s.ManualReset(); !errors.Is(err, ErrNotResettable) {
		t.Fatalf("ManualReset() on standard = %v, want ErrNotResettable", err)
	}

	if _, err := s.Upgrade("2741520"); err != nil {
		t.Fatalf("Upgrade() error: %v", err)
	}
	for i := 0; i < 10; i++ {
		s.TryConsume()
	}
	if err := s.ManualReset(); err != nil {
		t.Fatalf("ManualReset() on elite error: %v", err)
	}
	if got := s.Snapshot().SignalsUsed; got != 0 {
		t.Fatalf("SignalsUsed = %d after manual reset, want 0", got)
	}
}

// -----------------------------------------------------------------------------

func TestLoadPersistedState(t *testing.T) {
	disk := &memStore{
		state: models.MEntitlementState{
			Tier:        models.TierElite,
			SignalsUsed: 12,
			LastReset:   time.Now().UnixMilli(),
		},
		hasState: true,
	}
	s := newTestStore(t, disk)

	state := s.Snapshot()
	if state.Tier != models.TierElite || state.SignalsUsed != 12 {
		t.Fatalf("loaded state = %+v, want persisted elite/12", state)
	}
}

// -----------------------------------------------------------------------------

func TestLoadMalformedFallsBack(t *testing.T) {
	disk := &memStore{
		state: models.MEntitlementState{
			Tier:        "PLATINUM",
			SignalsUsed: 12,
			LastReset:   time.Now().UnixMilli(),
		},
		hasState: true,
	}
	s := newTestStore(t, disk)

	state := s.Snapshot()
	if state.Tier != models.TierStandard || state.SignalsUsed != 0 {
		t.Fatalf("loaded state = %+v, want standard defaults", state)
	}
}

// -----------------------------------------------------------------------------

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	disk := &memStore{saveErr: errors.New("disk full")}
	s := newTestStore(t, disk)

	if !s.TryConsume() {
		t.Fatal("consume denied on persist failure, want approved")
	}
	if got := s.Snapshot().SignalsUsed; got != 1 {
		t.Fatalf("SignalsUsed = %d, want 1 (memory authoritative)", got)
	}
}

// -----------------------------------------------------------------------------

func TestHasQuotaDoesNotConsume(t *testing.T) {
	s := newTestStore(t, &memStore{})

	for i := 0; i < 3; i++ {
		if !s.HasQuota() {
			t.Fatal("HasQuota() = false on fresh store")
		}
	}
	if got := s.Snapshot().SignalsUsed; got != 0 {
		t.Fatalf("HasQuota consumed: SignalsUsed = %d, want 0", got)
	}
}

// -----------------------------------------------------------------------------

func TestResetCountdown(t *testing.T) {
	s := newTestStore(t, &memStore{})

	// Standard has no window.
	if cd := s.ResetCountdown(); cd != (models.MCountdown{}) {
		t.Fatalf("ResetCountdown() for standard = %+v, want zero", cd)
	}

	now := time.Now()
	s.Now = func() time.Time { return now }
	if _, err := s.Upgrade("2741520"); err != nil {
		t.Fatalf("Upgrade() error: %v", err)
	}

	now = now.Add(23 * time.Hour)
	cd := s.ResetCountdown()
	if cd.H != 1 || cd.D != 0 {
		t.Fatalf("ResetCountdown() = %+v, want ~1h", cd)
	}
}
