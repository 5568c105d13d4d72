package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository"
)

// PasswordLoginInput carries password credentials.
type PasswordLoginInput struct {
	Email    string
	Password string
	IP       string
}

// LoginResult is returned after a successful password login.
type LoginResult struct {
	PersonID    string
	AccessToken string
	ExpiresAt   time.Time
}

// PasswordLoginService authenticates people who configured a password.
type PasswordLoginService struct {
	people   port.PersonRepository
	verifier port.PasswordVerifier
	sessions port.SessionIssuer
	bucket   *TokenBucket
	events   port.EventPublisher
	metrics  *telemetry.AuthMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewPasswordLoginService constructs a PasswordLoginService. bucket is keyed by email.
func NewPasswordLoginService(
	people port.PersonRepository,
	verifier port.PasswordVerifier,
	sessions port.SessionIssuer,
	bucket *TokenBucket,
	events port.EventPublisher,
	metrics *telemetry.AuthMetrics,
	log *zap.Logger,
) (*PasswordLoginService, error) {
	switch {
	case people == nil:
		return nil, errors.New("person repository is required")
	case verifier == nil:
		return nil, errors.New("password verifier is required")
	case sessions == nil:
		return nil, errors.New("session issuer is required")
	case bucket == nil:
		return nil, errors.New("password login bucket is required")
	case events == nil:
		return nil, errors.New("event publisher is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &PasswordLoginService{
		people:   people,
		verifier: verifier,
		sessions: sessions,
		bucket:   bucket,
		events:   events,
		metrics:  metrics,
		logger:   log,
		now:      time.Now,
	}, nil
}

// Login verifies in.Password and opens a session.
func (s *PasswordLoginService) Login(ctx context.Context, in PasswordLoginInput) (_ *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "PasswordLoginService.Login")
	defer func() { endSpan(span, err) }()

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	if err := s.bucket.consume(ctx, email, s.metrics); err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.metrics.Login(LoginMethodPassword, telemetry.OutcomeRateLimited)
		}
		return nil, err
	}

	person, err := s.people.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.Login(LoginMethodPassword, telemetry.OutcomeInvalid)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup person: %w", err)
	}
	span.SetAttributes(attribute.String("person.id", person.ID))

	if !person.HasPassword() {
		s.metrics.Login(LoginMethodPassword, telemetry.OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.verifier.Verify(in.Password, *person.PasswordHash)
	if err != nil {
		s.metrics.Login(LoginMethodPassword, telemetry.OutcomeError)
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.Login(LoginMethodPassword, telemetry.OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}

	if !person.IsActive {
		s.metrics.Login(LoginMethodPassword, telemetry.OutcomeInactive)
		return nil, ErrInactiveAccount
	}

	token, expiresAt, err := s.sessions.Issue(person.ID, LoginMethodPassword)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	recordLogin(ctx, s.people, s.events, s.metrics, s.logger, s.now().UTC(), person.ID, LoginMethodPassword)

	return &LoginResult{PersonID: person.ID, AccessToken: token, ExpiresAt: expiresAt}, nil
}
