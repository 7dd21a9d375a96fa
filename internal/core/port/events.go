package port

import (
	"context"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
)

// EventPublisher publishes revocation events to the message bus.
type EventPublisher interface {
	PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error
	PublishUserRevoked(ctx context.Context, event domain.UserRevokedEvent) error
}

// AuditLog records revocation actions durably. Failures are logged and
// swallowed by the coordinator, never surfaced to callers.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
}

// DenylistSnapshotStore persists serialised membership-tier snapshots for warm starts.
type DenylistSnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot domain.DenylistSnapshot) error
	LoadLatestSnapshot(ctx context.Context) (*domain.DenylistSnapshot, error)
}
