package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, also used as topic names once prefixed.
const (
	EventLoginCodeRequested   = "auth.login_code.requested"
	EventLoginSucceeded       = "auth.login.succeeded"
	EventAutoLoginSaltRotated = "auth.auto_login_salt.rotated"
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
	PersonID  string           `json:"person_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, personID string, ts time.Time, payload any) error {
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
		PersonID:  personID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	return p.producer.Send(ctx, eventType, personID, bytes)
}

// PublishLoginCodeRequested publishes auth.login_code.requested events consumed by the mailer.
func (p *EventPublisher) PublishLoginCodeRequested(ctx context.Context, event domain.LoginCodeRequestedEvent) error {
	payload := struct {
		PersonID    string    `json:"person_id"`
		Email       string    `json:"email"`
		Code        string    `json:"code"`
		ExpiresAt   time.Time `json:"expires_at"`
		RequestedAt time.Time `json:"requested_at"`
		IPAddress   string    `json:"ip_address,omitempty"`
	}{
		PersonID:    event.PersonID,
		Email:       event.Email,
		Code:        event.Code,
		ExpiresAt:   event.ExpiresAt.UTC(),
		RequestedAt: event.RequestedAt.UTC(),
		IPAddress:   event.IPAddress,
	}

	return p.publish(ctx, event.EventID, EventLoginCodeRequested, event.PersonID, event.RequestedAt, payload)
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		PersonID string    `json:"person_id"`
		Method   string    `json:"method"`
		LoggedAt time.Time `json:"logged_at"`
	}{
		PersonID: event.PersonID,
		Method:   event.Method,
		LoggedAt: event.LoggedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventLoginSucceeded, event.PersonID, event.LoggedAt, payload)
}

// PublishAutoLoginSaltRotated publishes auth.auto_login_salt.rotated events.
func (p *EventPublisher) PublishAutoLoginSaltRotated(ctx context.Context, event domain.AutoLoginSaltRotatedEvent) error {
	payload := struct {
		PersonID  string    `json:"person_id"`
		RotatedAt time.Time `json:"rotated_at"`
	}{
		PersonID:  event.PersonID,
		RotatedAt: event.RotatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAutoLoginSaltRotated, event.PersonID, event.RotatedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
