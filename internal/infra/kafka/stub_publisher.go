package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishTokenRevoked logs revocation.token.revoked events.
func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	payload := map[string]any{
		"identifier": event.Identifier,
		"user_id":    event.UserID,
		"reason":     string(event.Reason),
		"revoked_at": event.RevokedAt,
		"expires_at": event.ExpiresAt,
		"metadata":   event.Metadata,
	}
	p.logEvent(eventTypeTokenRevoked, event.UserID, event.RevokedAt, payload)
	return nil
}

// PublishUserRevoked logs revocation.user.revoked events.
func (p *StubPublisher) PublishUserRevoked(_ context.Context, event domain.UserRevokedEvent) error {
	payload := map[string]any{
		"user_id":        event.UserID,
		"reason":         string(event.Reason),
		"revoked_before": event.RevokedBefore,
		"metadata":       event.Metadata,
	}
	p.logEvent(eventTypeUserRevoked, event.UserID, event.RevokedBefore, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
