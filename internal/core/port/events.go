package port

import (
	"context"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishLoginCodeRequested(ctx context.Context, event domain.LoginCodeRequestedEvent) error
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishAutoLoginSaltRotated(ctx context.Context, event domain.AutoLoginSaltRotatedEvent) error
}
