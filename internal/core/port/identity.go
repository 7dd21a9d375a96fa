package port

import (
	"context"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
)

// TokenVerifier is the boundary to the issuing subsystem. It performs the
// cryptographically verified decode the identity extractor tries first.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (*domain.TokenClaims, error)
}
