package interfaces

import "signal-desk/src/models"

// -----------------------------------------------------------------------------
// IStateStore defines the contract for persisted session state.
//
// Every write is fire-and-forget from the caller's point of view: errors are
// reported but in-memory state stays authoritative and the caller retries on
// the next mutation.
// -----------------------------------------------------------------------------

type IStateStore interface {

	// Initialize sets up the schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// LoadEntitlement restores tier, used-count and last-reset. Missing or
	// malformed values are reported via ok=false per field group; the caller
	// substitutes defaults.
	LoadEntitlement() (state models.MEntitlementState, ok bool, err error)

	// -----------------------------------------------------------------------------

	// SaveEntitlement persists the full entitlement state (string-encoded kv).
	SaveEntitlement(state models.MEntitlementState) error

	// -----------------------------------------------------------------------------

	// SaveSignal inserts or replaces one signal row keyed by id.
	SaveSignal(sig models.MSignal) error

	// -----------------------------------------------------------------------------

	// LoadSignals returns the persisted history, newest first.
	LoadSignals() ([]models.MSignal, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
