package handlers

import "time"

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RevokeResponse acknowledges an accepted revocation.
type RevokeResponse struct {
	Status string `json:"status"`
}

// CheckResponse reports a revocation check outcome.
type CheckResponse struct {
	Revoked bool `json:"revoked"`
}

// StatsResponse mirrors usecase.Stats for the wire.
type StatsResponse struct {
	RevocationCount    int64      `json:"revocation_count"`
	UptimeSeconds      int64      `json:"uptime_seconds"`
	MembershipTierSize int        `json:"membership_tier_size"`
	LastCleanup        *time.Time `json:"last_cleanup,omitempty"`
}

// CleanupResponse reports a manual sweep result.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}
