package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
)

// IdentityExtractor derives a stable storage key from a credential. It is NOT
// a security boundary: the unverified fallback exists so expired or otherwise
// unverifiable credentials stay revocable, and its output is used only as a
// bookkeeping identity, never for authorization.
type IdentityExtractor struct {
	verifier port.TokenVerifier
	parser   *jwt.Parser
}

// NewIdentityExtractor wires the issuing subsystem's verifier into an
// extractor. The verifier may be nil; extraction then starts at the
// unverified decode.
func NewIdentityExtractor(verifier port.TokenVerifier) *IdentityExtractor {
	return &IdentityExtractor{
		verifier: verifier,
		parser:   jwt.NewParser(),
	}
}

// Identifier recovers a stable key for the credential, trying in order:
// verified decode, unverified payload decode, content hash. It cannot fail
// because the hash step accepts arbitrary opaque strings.
func (e *IdentityExtractor) Identifier(ctx context.Context, credential string) string {
	credential = strings.TrimSpace(credential)

	if e.verifier != nil {
		if claims, err := e.verifier.Verify(ctx, credential); err == nil && claims != nil {
			if jti := strings.TrimSpace(claims.JTI); jti != "" {
				return jti
			}
		}
	}

	if claims, ok := e.decodeUnverified(credential); ok {
		if jti := strings.TrimSpace(claims.JTI); jti != "" {
			return jti
		}
	}

	return HashToken(credential)
}

// Claims recovers {subject, issuedAt} for the mass-revocation check, following
// the same fallback order. Returns false when no usable pair exists, in which
// case user-level revocation cannot be evaluated and is skipped.
func (e *IdentityExtractor) Claims(ctx context.Context, credential string) (*domain.TokenClaims, bool) {
	credential = strings.TrimSpace(credential)

	if e.verifier != nil {
		if claims, err := e.verifier.Verify(ctx, credential); err == nil && claims != nil {
			if strings.TrimSpace(claims.Subject) != "" && !claims.IssuedAt.IsZero() {
				return claims, true
			}
		}
	}

	if claims, ok := e.decodeUnverified(credential); ok {
		if strings.TrimSpace(claims.Subject) != "" && !claims.IssuedAt.IsZero() {
			return claims, true
		}
	}

	return nil, false
}

// decodeUnverified recovers claims from the payload segment without signature
// verification. Bookkeeping only.
func (e *IdentityExtractor) decodeUnverified(credential string) (*domain.TokenClaims, bool) {
	if credential == "" {
		return nil, false
	}

	registered := &jwt.RegisteredClaims{}
	if _, _, err := e.parser.ParseUnverified(credential, registered); err != nil {
		return nil, false
	}

	claims := &domain.TokenClaims{
		JTI:     registered.ID,
		Subject: registered.Subject,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	return claims, true
}

// HashToken calculates a SHA-256 hash of the provided value, keeping arbitrary
// opaque strings revocable by value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
