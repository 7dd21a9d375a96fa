package domain

import "time"

// TokenRevokedEvent represents the payload for revocation.token.revoked messages.
type TokenRevokedEvent struct {
	EventID    string
	Identifier string
	UserID     string
	Reason     Reason
	RevokedAt  time.Time
	ExpiresAt  time.Time
	Metadata   map[string]any
}

// UserRevokedEvent represents the payload for revocation.user.revoked messages.
type UserRevokedEvent struct {
	EventID       string
	UserID        string
	Reason        Reason
	RevokedBefore time.Time
	Metadata      map[string]any
}

// AuditEntry is a durable trace of a revocation action. Mass revocations are
// always audited; single-token revocations are audited when a user is known.
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Reason    Reason
	Metadata  map[string]any
	CreatedAt time.Time
}

// Audit action names.
const (
	AuditActionTokenRevoked = "token_revoked"
	AuditActionUserRevoked  = "user_revoked"
)
