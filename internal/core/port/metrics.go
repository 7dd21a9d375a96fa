package port

import "time"

// RevocationMetrics captures telemetry hooks for revocation writes and checks.
// Purely observational; implementations must never affect control flow.
type RevocationMetrics interface {
	IncRevocation(scope string, reason string)
	IncCheck(outcome string)
	IncTierHit(tier string)
	IncTierFailure(tier string)
	ObserveCheckDuration(d time.Duration)
}
