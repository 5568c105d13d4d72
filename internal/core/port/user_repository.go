package port

import (
	"context"
	"time"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
)

// PersonRepository exposes persistence behavior for people.
type PersonRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Person, error)
	GetByEmail(ctx context.Context, email string) (*domain.Person, error)
	UpdateAutoLoginSalt(ctx context.Context, id string, salt string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
