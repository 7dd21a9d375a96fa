package domain

import "strings"

// DegradationPolicyMode enumerates supported behaviours for revocation checks
// when storage tiers cannot be reached.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient treats fully unreachable storage as "not revoked" (fail-open).
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict treats fully unreachable storage as "revoked" (fail-closed).
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationPolicy centralises the fail-open versus fail-closed decision for
// checks that could not consult a single tier. The default is lenient and must
// be called out in deployment runbooks: with storage down, a lenient check
// reports the credential as still valid.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy constructs a policy with the provided mode, defaulting to lenient.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeStrict {
		mode = DegradationPolicyModeLenient
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises textual input into a supported policy mode.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DegradationPolicyModeStrict):
		return DegradationPolicyModeStrict
	default:
		return DegradationPolicyModeLenient
	}
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	return p.mode
}

// FailClosed reports whether a check that reached no tier must report "revoked".
func (p DegradationPolicy) FailClosed() bool {
	return p.mode == DegradationPolicyModeStrict
}
