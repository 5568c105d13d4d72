package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, personID string, at time.Time, payload map[string]any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("person_id", personID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginCodeRequested logs auth.login_code.requested events. The code itself is left out.
func (p *StubPublisher) PublishLoginCodeRequested(_ context.Context, event domain.LoginCodeRequestedEvent) error {
	payload := map[string]any{
		"person_id":    event.PersonID,
		"email":        logger.MaskEmail(event.Email),
		"expires_at":   event.ExpiresAt,
		"requested_at": event.RequestedAt,
		"ip_address":   logger.MaskIP(event.IPAddress),
	}
	p.logEvent(EventLoginCodeRequested, event.PersonID, event.RequestedAt, payload)
	return nil
}

// PublishLoginSucceeded logs auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"person_id": event.PersonID,
		"method":    event.Method,
		"logged_at": event.LoggedAt,
	}
	p.logEvent(EventLoginSucceeded, event.PersonID, event.LoggedAt, payload)
	return nil
}

// PublishAutoLoginSaltRotated logs auth.auto_login_salt.rotated events.
func (p *StubPublisher) PublishAutoLoginSaltRotated(_ context.Context, event domain.AutoLoginSaltRotatedEvent) error {
	payload := map[string]any{
		"person_id":  event.PersonID,
		"rotated_at": event.RotatedAt,
	}
	p.logEvent(EventAutoLoginSaltRotated, event.PersonID, event.RotatedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
