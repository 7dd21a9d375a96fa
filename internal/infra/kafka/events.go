package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
	"github.com/arklim/social-platform-revocation/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	eventTypeTokenRevoked = "revocation.token.revoked"
	eventTypeUserRevoked  = "revocation.user.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishTokenRevoked emits a revocation.token.revoked event.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	payload := map[string]any{
		"identifier": event.Identifier,
		"user_id":    event.UserID,
		"reason":     string(event.Reason),
		"revoked_at": event.RevokedAt,
		"expires_at": event.ExpiresAt,
		"metadata":   event.Metadata,
	}
	return p.publish(ctx, event.EventID, eventTypeTokenRevoked, event.UserID, event.RevokedAt, payload)
}

// PublishUserRevoked emits a revocation.user.revoked event.
func (p *EventPublisher) PublishUserRevoked(ctx context.Context, event domain.UserRevokedEvent) error {
	payload := map[string]any{
		"user_id":        event.UserID,
		"reason":         string(event.Reason),
		"revoked_before": event.RevokedBefore,
		"metadata":       event.Metadata,
	}
	return p.publish(ctx, event.EventID, eventTypeUserRevoked, event.UserID, event.RevokedBefore, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
