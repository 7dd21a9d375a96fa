package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseReasonAcceptsKnownValues(t *testing.T) {
	for _, value := range []string{
		"logout",
		"password_change",
		"security_breach",
		"admin_action",
		"session_revoked",
		"account_deleted",
		"token_refresh",
	} {
		reason, err := ParseReason(value)
		if err != nil {
			t.Fatalf("ParseReason(%q) returned error: %v", value, err)
		}
		if string(reason) != value {
			t.Fatalf("expected reason %q, got %q", value, reason)
		}
	}

	reason, err := ParseReason("  Logout ")
	if err != nil {
		t.Fatalf("ParseReason with whitespace returned error: %v", err)
	}
	if reason != ReasonLogout {
		t.Fatalf("expected normalised logout reason, got %q", reason)
	}
}

func TestParseReasonRejectsUnknownValues(t *testing.T) {
	if _, err := ParseReason("bogus"); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
	if _, err := ParseReason(""); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason for empty input, got %v", err)
	}
}

func TestRevocationRecordRoundTrip(t *testing.T) {
	record := RevocationRecord{
		Identifier: "jti-1",
		Reason:     ReasonLogout,
		RevokedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserID:     "user-1",
		TTL:        time.Hour,
		Metadata:   map[string]any{"client": "web"},
	}

	payload, err := record.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, err := DecodeRevocationRecord(payload)
	if err != nil {
		t.Fatalf("DecodeRevocationRecord returned error: %v", err)
	}
	if decoded.Identifier != record.Identifier || decoded.Reason != record.Reason {
		t.Fatalf("decoded record mismatch: %+v", decoded)
	}
	if !decoded.RevokedAt.Equal(record.RevokedAt) {
		t.Fatalf("expected revoked_at %v, got %v", record.RevokedAt, decoded.RevokedAt)
	}
	if decoded.TTL != time.Hour {
		t.Fatalf("expected ttl %v, got %v", time.Hour, decoded.TTL)
	}
}

func TestUserRevocationMarkerCoversIsStrict(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	marker := UserRevocationMarker{UserID: "u1", RevokedBefore: cutoff, Reason: ReasonPasswordChange}

	if !marker.Covers(cutoff.Add(-time.Second)) {
		t.Fatalf("expected credential issued before cutoff to be covered")
	}
	if marker.Covers(cutoff) {
		t.Fatalf("credential issued exactly at cutoff must stay valid")
	}
	if marker.Covers(cutoff.Add(time.Second)) {
		t.Fatalf("credential issued after cutoff must stay valid")
	}
}

func TestUserMarkerKey(t *testing.T) {
	if key := UserMarkerKey(" u1 "); key != "user:u1" {
		t.Fatalf("expected user:u1, got %q", key)
	}
}

func TestDegradationPolicyDefaultsToLenient(t *testing.T) {
	policy := NewDegradationPolicy(ParseDegradationPolicyMode("unknown"))
	if policy.FailClosed() {
		t.Fatalf("expected lenient policy by default")
	}

	strict := NewDegradationPolicy(ParseDegradationPolicyMode("STRICT"))
	if !strict.FailClosed() {
		t.Fatalf("expected strict policy to fail closed")
	}
}
