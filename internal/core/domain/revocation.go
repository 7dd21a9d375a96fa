package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidReason indicates the supplied revocation reason is outside the accepted set.
var ErrInvalidReason = errors.New("revocation: invalid reason")

// Reason enumerates the accepted causes for revoking a credential.
type Reason string

const (
	ReasonLogout         Reason = "logout"
	ReasonPasswordChange Reason = "password_change"
	ReasonSecurityBreach Reason = "security_breach"
	ReasonAdminAction    Reason = "admin_action"
	ReasonSessionRevoked Reason = "session_revoked"
	ReasonAccountDeleted Reason = "account_deleted"
	ReasonTokenRefresh   Reason = "token_refresh"
)

var knownReasons = map[Reason]struct{}{
	ReasonLogout:         {},
	ReasonPasswordChange: {},
	ReasonSecurityBreach: {},
	ReasonAdminAction:    {},
	ReasonSessionRevoked: {},
	ReasonAccountDeleted: {},
	ReasonTokenRefresh:   {},
}

// Valid reports whether the reason belongs to the accepted enumeration.
func (r Reason) Valid() bool {
	_, ok := knownReasons[r]
	return ok
}

// ParseReason normalises textual input into a Reason or fails with ErrInvalidReason.
func ParseReason(value string) (Reason, error) {
	reason := Reason(strings.ToLower(strings.TrimSpace(value)))
	if !reason.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReason, value)
	}
	return reason, nil
}

// RevocationRecord captures a single revoked credential. Records are immutable:
// they are created once and disappear only through tier-level TTL expiry.
type RevocationRecord struct {
	Identifier string         `json:"identifier"`
	Reason     Reason         `json:"reason"`
	RevokedAt  time.Time      `json:"revoked_at"`
	UserID     string         `json:"user_id,omitempty"`
	TTL        time.Duration  `json:"ttl"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Encode serialises the record for tier storage.
func (r RevocationRecord) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode revocation record: %w", err)
	}
	return string(data), nil
}

// DecodeRevocationRecord parses a tier payload back into a record.
func DecodeRevocationRecord(payload string) (*RevocationRecord, error) {
	var record RevocationRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("decode revocation record: %w", err)
	}
	return &record, nil
}

// UserRevocationMarker invalidates every credential for a user issued strictly
// before RevokedBefore. A later mass revocation simply overwrites the marker.
type UserRevocationMarker struct {
	UserID        string         `json:"user_id"`
	RevokedBefore time.Time      `json:"revoked_before"`
	Reason        Reason         `json:"reason"`
	TTL           time.Duration  `json:"ttl"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Covers reports whether a credential issued at the supplied time falls under
// the marker. The comparison is strict: issuedAt == RevokedBefore stays valid.
func (m UserRevocationMarker) Covers(issuedAt time.Time) bool {
	return issuedAt.Before(m.RevokedBefore)
}

// Encode serialises the marker for tier storage.
func (m UserRevocationMarker) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode user revocation marker: %w", err)
	}
	return string(data), nil
}

// DecodeUserRevocationMarker parses a tier payload back into a marker.
func DecodeUserRevocationMarker(payload string) (*UserRevocationMarker, error) {
	var marker UserRevocationMarker
	if err := json.Unmarshal([]byte(payload), &marker); err != nil {
		return nil, fmt.Errorf("decode user revocation marker: %w", err)
	}
	return &marker, nil
}

const userMarkerPrefix = "user:"

// UserMarkerKey derives the tier key for a user's mass-revocation marker.
func UserMarkerKey(userID string) string {
	return userMarkerPrefix + strings.TrimSpace(userID)
}

// TokenClaims is the subset of credential claims the revocation subsystem
// reasons about. It is bookkeeping identity only, never an authorization input.
type TokenClaims struct {
	JTI      string
	Subject  string
	IssuedAt time.Time
}
