package models

// -----------------------------------------------------------------------------
// Entitlement state
// -----------------------------------------------------------------------------

// MTier is the entitlement level controlling quota and reset behavior.
type MTier string

const (
	TierStandard MTier = "STANDARD"
	TierElite    MTier = "ELITE"
	TierVIP      MTier = "VIP"
)

// -----------------------------------------------------------------------------

// MEntitlementState is the process-wide persisted quota state.
// LastReset is epoch millis, matching the persisted string encoding.
type MEntitlementState struct {
	Tier        MTier `json:"tier"`
	SignalsUsed int   `json:"signalsUsed"`
	LastReset   int64 `json:"lastReset"`
}
