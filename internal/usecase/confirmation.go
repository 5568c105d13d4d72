package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/security"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository"
)

// connectionSubjectParam names the person in connection tokens.
const connectionSubjectParam = "user"

// ConfirmationService issues and verifies the signed tokens embedded in confirmation links.
type ConfirmationService struct {
	generators map[domain.TokenKind]*security.SignatureGenerator
	people     port.PersonRepository
	events     port.EventPublisher
	metrics    *telemetry.AuthMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewConfirmationService constructs a ConfirmationService over one generator per token kind.
func NewConfirmationService(
	generators map[domain.TokenKind]*security.SignatureGenerator,
	people port.PersonRepository,
	events port.EventPublisher,
	metrics *telemetry.AuthMetrics,
	log *zap.Logger,
) (*ConfirmationService, error) {
	if len(generators) == 0 {
		return nil, errors.New("signature generators are required")
	}
	if people == nil {
		return nil, errors.New("person repository is required")
	}
	if events == nil {
		return nil, errors.New("event publisher is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &ConfirmationService{
		generators: generators,
		people:     people,
		events:     events,
		metrics:    metrics,
		logger:     log,
		now:        time.Now,
	}, nil
}

// Issue signs params for kind.
func (s *ConfirmationService) Issue(ctx context.Context, kind domain.TokenKind, params security.Params) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.Issue")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("token.kind", string(kind)))

	gen, err := s.generator(kind)
	if err != nil {
		return "", err
	}

	params, err = s.withSubjectSalt(ctx, kind, params)
	if err != nil {
		return "", err
	}

	token, err := gen.MakeToken(params)
	if err != nil {
		return "", err
	}
	s.metrics.TokenIssued(string(kind))

	return token, nil
}

// Verify checks token against params. Expired is only reported for tokens that failed.
func (s *ConfirmationService) Verify(ctx context.Context, kind domain.TokenKind, token string, params security.Params) (_ domain.TokenVerification, err error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.Verify")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("token.kind", string(kind)))

	gen, err := s.generator(kind)
	if err != nil {
		return domain.TokenVerification{}, err
	}

	params, err = s.withSubjectSalt(ctx, kind, params)
	if err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			return domain.TokenVerification{}, nil
		}
		return domain.TokenVerification{}, err
	}

	ok, err := gen.CheckToken(token, params)
	if err != nil {
		return domain.TokenVerification{}, err
	}
	if ok {
		return domain.TokenVerification{Valid: true}, nil
	}

	return domain.TokenVerification{Expired: gen.IsExpired(token)}, nil
}

// RotateAutoLoginSalt replaces the auto login salt of personID, voiding every connection
// token issued to that person.
func (s *ConfirmationService) RotateAutoLoginSalt(ctx context.Context, personID string) (err error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.RotateAutoLoginSalt")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(personID) == "" {
		return ErrPersonNotFound
	}

	if err := s.people.UpdateAutoLoginSalt(ctx, personID, uuid.NewString()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPersonNotFound
		}
		return fmt.Errorf("update auto login salt: %w", err)
	}

	event := domain.AutoLoginSaltRotatedEvent{
		EventID:   uuid.NewString(),
		PersonID:  personID,
		RotatedAt: s.now().UTC(),
	}
	if err := s.events.PublishAutoLoginSaltRotated(ctx, event); err != nil {
		s.logger.Warn("Failed to publish auto login salt rotation", zap.String("person_id", personID), zap.Error(err))
	}

	return nil
}

func (s *ConfirmationService) generator(kind domain.TokenKind) (*security.SignatureGenerator, error) {
	gen, ok := s.generators[kind]
	if !ok || gen == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTokenKind, kind)
	}
	return gen, nil
}

// withSubjectSalt returns a copy of params carrying the stored auto login salt of the person
// named by connection tokens. A salt supplied by the caller is never trusted.
func (s *ConfirmationService) withSubjectSalt(ctx context.Context, kind domain.TokenKind, params security.Params) (security.Params, error) {
	out := make(security.Params, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	delete(out, security.AutoLoginSaltParam)

	if kind != domain.TokenKindConnection {
		return out, nil
	}

	personID, ok := out[connectionSubjectParam]
	if !ok {
		return nil, fmt.Errorf("%w: %s", security.ErrMissingTokenParams, connectionSubjectParam)
	}

	person, err := s.people.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("lookup person: %w", err)
	}

	out[security.AutoLoginSaltParam] = person.AutoLoginSalt
	return out, nil
}
