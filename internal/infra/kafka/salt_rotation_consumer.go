package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
)

// EventSessionsRevoked is the event type, and unprefixed topic, the salt rotation consumer listens to.
const EventSessionsRevoked = "people.person.sessions_revoked"

// SaltRotator voids the connection tokens of a person.
type SaltRotator interface {
	RotateAutoLoginSalt(ctx context.Context, personID string) error
}

// SaltRotationConsumer rotates the auto login salt of people whose sessions were revoked.
type SaltRotationConsumer struct {
	rotator SaltRotator
	logger  *zap.Logger
}

// NewSaltRotationConsumer constructs the consumer.
func NewSaltRotationConsumer(rotator SaltRotator, logger *zap.Logger) *SaltRotationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaltRotationConsumer{rotator: rotator, logger: logger}
}

// HandleMessage decodes a sessions revoked envelope and rotates the salt.
func (c *SaltRotationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return errors.New("message is nil")
	}

	var envelope struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
		PersonID  string `json:"person_id"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode sessions revoked event: %w", err)
	}
	if envelope.EventType != "" && envelope.EventType != EventSessionsRevoked {
		c.logger.Debug("ignoring unrelated event", zap.String("event_type", envelope.EventType))
		return nil
	}

	return c.HandleEvent(ctx, domain.SessionsRevokedEvent{
		EventID:  envelope.EventID,
		PersonID: envelope.PersonID,
	})
}

// HandleEvent rotates the salt of the person named by event.
func (c *SaltRotationConsumer) HandleEvent(ctx context.Context, event domain.SessionsRevokedEvent) error {
	if c.rotator == nil {
		return nil
	}
	if strings.TrimSpace(event.PersonID) == "" {
		return errors.New("sessions revoked event without person id")
	}

	if err := c.rotator.RotateAutoLoginSalt(ctx, event.PersonID); err != nil {
		c.logger.Warn("failed to rotate auto login salt",
			zap.String("person_id", event.PersonID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return fmt.Errorf("rotate auto login salt: %w", err)
	}

	return nil
}
