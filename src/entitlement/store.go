package entitlement

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"signal-desk/src/interfaces"
	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// Store is the process-wide quota and tier state. In-memory state is
// authoritative; every mutation is written through best-effort and a failed
// write is simply retried on the next mutation.
// -----------------------------------------------------------------------------

// Upgrade passphrases, fixed two-element set.
const (
	eliteSecret = "2741520"
	vipSecret   = "1448135"
)

// -----------------------------------------------------------------------------

var (
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	ErrNotResettable     = errors.New("tier does not support manual reset")
)

// -----------------------------------------------------------------------------

// TierPolicy is one row of the tier lookup table. Limit < 0 means unbounded.
type TierPolicy struct {
	Limit       int
	ResetWindow time.Duration
	AutoReset   bool
}

// Canonical reset window is 24h for every auto-resetting tier.
var tierPolicies = map[models.MTier]TierPolicy{
	models.TierStandard: {Limit: 20},
	models.TierElite:    {Limit: 50, ResetWindow: 24 * time.Hour, AutoReset: true},
	models.TierVIP:      {Limit: -1, ResetWindow: 24 * time.Hour, AutoReset: true},
}

// PolicyFor returns the tier's policy row; unknown tiers fall back to standard.
func PolicyFor(tier models.MTier) TierPolicy {
	if p, ok := tierPolicies[tier]; ok {
		return p
	}
	return tierPolicies[models.TierStandard]
}

// -----------------------------------------------------------------------------

type Store struct {
	Logger *logger.Logger
	Now    func() time.Time

	mu    sync.Mutex
	state models.MEntitlementState
	disk  interfaces.IStateStore
}

// -----------------------------------------------------------------------------

func NewStore(disk interfaces.IStateStore, log *logger.Logger) *Store {
	return &Store{
		Logger: log,
		Now:    time.Now,
		disk:   disk,
		state: models.MEntitlementState{
			Tier:      models.TierStandard,
			LastReset: time.Now().UnixMilli(),
		},
	}
}

// -----------------------------------------------------------------------------

// Load restores persisted state. Fails soft: any missing or malformed value
// leaves the defaults {standard, 0, now} in place.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok, err := s.disk.LoadEntitlement()
	if err != nil {
		s.Logger.Warning("Entitlement load failed, starting from defaults: %v", err)
		return
	}
	if !ok {
		s.Logger.Info("No persisted entitlement state, starting from defaults")
		return
	}

	switch state.Tier {
	case models.TierStandard, models.TierElite, models.TierVIP:
	default:
		s.Logger.Warning("Unknown persisted tier %q, starting from defaults", state.Tier)
		return
	}
	if state.SignalsUsed < 0 || state.LastReset <= 0 {
		s.Logger.Warning("Malformed persisted counters, starting from defaults")
		return
	}

	s.state = state
}

// -----------------------------------------------------------------------------

// persistLocked writes the current state through. Failures are logged and the
// in-memory state stays authoritative.
func (s *Store) persistLocked() {
	if err := s.disk.SaveEntitlement(s.state); err != nil {
		s.Logger.Warning("Entitlement persist failed (will retry on next mutation): %v", err)
	}
}

// -----------------------------------------------------------------------------

// TryConsume approves or denies one signal. On approval the used-count is
// incremented and persisted in the same critical section, so a check can
// never double-count within one call.
func (s *Store) TryConsume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeResetLocked(s.Now())

	policy := PolicyFor(s.state.Tier)
	if policy.Limit >= 0 && s.state.SignalsUsed >= policy.Limit {
		return false
	}

	s.state.SignalsUsed++
	s.persistLocked()
	return true
}

// -----------------------------------------------------------------------------

// MaybeReset applies the tier's reset window if it has elapsed. Safe to call
// idempotently at any time; standard never auto-resets.
func (s *Store) MaybeReset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeResetLocked(now)
}

func (s *Store) maybeResetLocked(now time.Time) {
	policy := PolicyFor(s.state.Tier)
	if !policy.AutoReset {
		return
	}
	if now.UnixMilli()-s.state.LastReset > policy.ResetWindow.Milliseconds() {
		s.state.SignalsUsed = 0
		s.state.LastReset = now.UnixMilli()
		s.persistLocked()
	}
}

// -----------------------------------------------------------------------------

// Upgrade maps the two known passphrases to tier transitions. Both secrets
// are always compared so an attacker learns nothing from timing, and any
// other input is rejected without revealing which passphrases exist.
func (s *Store) Upgrade(passphrase string) (models.MTier, error) {
	input := []byte(passphrase)
	isElite := subtle.ConstantTimeCompare(input, []byte(eliteSecret)) == 1
	isVIP := subtle.ConstantTimeCompare(input, []byte(vipSecret)) == 1

	var tier models.MTier
	switch {
	case isElite:
		tier = models.TierElite
	case isVIP:
		tier = models.TierVIP
	default:
		return "", ErrInvalidPassphrase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Tier = tier
	s.state.SignalsUsed = 0
	s.state.LastReset = s.Now().UnixMilli()
	s.persistLocked()

	s.Logger.Info("Tier upgraded to %s", tier)
	return tier, nil
}

// -----------------------------------------------------------------------------

// ManualReset force-resets the counters. Refused for standard, which only
// regains access through a tier upgrade.
func (s *Store) ManualReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !PolicyFor(s.state.Tier).AutoReset {
		return ErrNotResettable
	}

	s.state.SignalsUsed = 0
	s.state.LastReset = s.Now().UnixMilli()
	s.persistLocked()
	return nil
}

// -----------------------------------------------------------------------------

// HasQuota reports whether one more signal would be approved, without
// consuming anything. Used by the session pre-checks.
func (s *Store) HasQuota() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeResetLocked(s.Now())

	policy := PolicyFor(s.state.Tier)
	return policy.Limit < 0 || s.state.SignalsUsed < policy.Limit
}

// -----------------------------------------------------------------------------

// Remaining returns signals left in the window, or -1 for unbounded tiers.
func (s *Store) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy := PolicyFor(s.state.Tier)
	if policy.Limit < 0 {
		return -1
	}
	left := policy.Limit - s.state.SignalsUsed
	if left < 0 {
		left = 0
	}
	return left
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.MEntitlementState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// -----------------------------------------------------------------------------

// ResetCountdown is the time left until the next automatic reset, split for
// display. Zero for standard and for tiers inside their quota.
func (s *Store) ResetCountdown() models.MCountdown {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy := PolicyFor(s.state.Tier)
	if !policy.AutoReset {
		return models.MCountdown{}
	}

	nextReset := s.state.LastReset + policy.ResetWindow.Milliseconds()
	diff := nextReset - s.Now().UnixMilli()
	if diff <= 0 {
		return models.MCountdown{}
	}

	secs := int(diff / 1000)
	return models.MCountdown{
		D: secs / 86400,
		H: (secs / 3600) % 24,
		M: (secs / 60) % 60,
		S: secs % 60,
	}
}
