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
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/logger"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository"
)

const (
	// LoginMethodShortCode identifies sessions opened with an emailed short code.
	LoginMethodShortCode = "short_code"
	// LoginMethodPassword identifies sessions opened with a password.
	LoginMethodPassword = "password"
)

// LoginCodeBuckets are the token buckets guarding the short code login flow.
type LoginCodeBuckets struct {
	SendCodeEmail *TokenBucket
	SendCodeIP    *TokenBucket
	CheckCode     *TokenBucket
}

// LoginCodeRequest asks for a short code to be sent to Email.
type LoginCodeRequest struct {
	Email string
	IP    string
}

// LoginCodeIssued describes a code handed to the delivery pipeline. The code itself is not returned.
type LoginCodeIssued struct {
	PersonID  string
	ExpiresAt time.Time
}

// LoginCodeCheck submits a code received by email.
type LoginCodeCheck struct {
	Email string
	Code  string
	IP    string
}

// LoginCodeResult is returned after a successful code check.
type LoginCodeResult struct {
	PersonID    string
	Meta        map[string]any
	AccessToken string
	ExpiresAt   time.Time
}

// LoginCodeService coordinates the "code by email" login modality.
type LoginCodeService struct {
	people   port.PersonRepository
	codes    *ShortCodeGenerator
	buckets  LoginCodeBuckets
	sessions port.SessionIssuer
	events   port.EventPublisher
	metrics  *telemetry.AuthMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewLoginCodeService constructs a LoginCodeService instance.
func NewLoginCodeService(
	people port.PersonRepository,
	codes *ShortCodeGenerator,
	buckets LoginCodeBuckets,
	sessions port.SessionIssuer,
	events port.EventPublisher,
	metrics *telemetry.AuthMetrics,
	log *zap.Logger,
) (*LoginCodeService, error) {
	switch {
	case people == nil:
		return nil, errors.New("person repository is required")
	case codes == nil:
		return nil, errors.New("short code generator is required")
	case buckets.SendCodeEmail == nil || buckets.SendCodeIP == nil || buckets.CheckCode == nil:
		return nil, errors.New("login code buckets are required")
	case sessions == nil:
		return nil, errors.New("session issuer is required")
	case events == nil:
		return nil, errors.New("event publisher is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &LoginCodeService{
		people:   people,
		codes:    codes,
		buckets:  buckets,
		sessions: sessions,
		events:   events,
		metrics:  metrics,
		logger:   log,
		now:      time.Now,
	}, nil
}

// RequestCode generates a short code for the person owning req.Email and queues its delivery.
func (s *LoginCodeService) RequestCode(ctx context.Context, req LoginCodeRequest) (_ *LoginCodeIssued, err error) {
	ctx, span := tracer.Start(ctx, "LoginCodeService.RequestCode")
	defer func() { endSpan(span, err) }()

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if err := s.buckets.SendCodeEmail.consume(ctx, email, s.metrics); err != nil {
		return nil, err
	}
	if ip := strings.TrimSpace(req.IP); ip != "" {
		if err := s.buckets.SendCodeIP.consume(ctx, ip, s.metrics); err != nil {
			return nil, err
		}
	}

	person, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if !person.IsActive {
		return nil, ErrInactiveAccount
	}
	span.SetAttributes(attribute.String("person.id", person.ID))

	code, expiresAt, err := s.codes.GenerateShortCode(ctx, person.ID, map[string]any{"email": email})
	if err != nil {
		return nil, fmt.Errorf("generate short code: %w", err)
	}
	s.metrics.CodeIssued()

	event := domain.LoginCodeRequestedEvent{
		EventID:     uuid.NewString(),
		PersonID:    person.ID,
		Email:       email,
		Code:        code,
		ExpiresAt:   expiresAt,
		RequestedAt: s.now().UTC(),
		IPAddress:   req.IP,
	}
	if err := s.events.PublishLoginCodeRequested(ctx, event); err != nil {
		s.logger.Warn("Failed to publish login code event",
			zap.String("person_id", person.ID),
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
	}

	return &LoginCodeIssued{PersonID: person.ID, ExpiresAt: expiresAt}, nil
}

// CheckCode verifies a submitted code and opens a session when it matches.
func (s *LoginCodeService) CheckCode(ctx context.Context, in LoginCodeCheck) (_ *LoginCodeResult, err error) {
	ctx, span := tracer.Start(ctx, "LoginCodeService.CheckCode")
	defer func() { endSpan(span, err) }()

	code := s.codes.NormalizeCode(in.Code)
	if !s.codes.IsAllowedPattern(code) {
		s.metrics.CodeChecked(telemetry.OutcomeMalformed)
		return nil, ErrCodeMalformed
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if err := s.buckets.CheckCode.consume(ctx, email, s.metrics); err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.metrics.CodeChecked(telemetry.OutcomeRateLimited)
		}
		return nil, err
	}

	person, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			s.metrics.CodeChecked(telemetry.OutcomeInvalid)
			return nil, ErrCodeInvalid
		}
		return nil, err
	}

	match, err := s.codes.CheckShortCode(ctx, person.ID, code)
	if err != nil {
		s.metrics.CodeChecked(telemetry.OutcomeError)
		return nil, fmt.Errorf("check short code: %w", err)
	}
	if !match.Matched {
		s.metrics.CodeChecked(telemetry.OutcomeInvalid)
		return nil, ErrCodeInvalid
	}
	// Account state is only disclosed to whoever holds a valid code.
	if !person.IsActive {
		s.metrics.CodeChecked(telemetry.OutcomeInactive)
		return nil, ErrInactiveAccount
	}
	s.metrics.CodeChecked(telemetry.OutcomeSuccess)

	token, expiresAt, err := s.sessions.Issue(person.ID, LoginMethodShortCode)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.afterLogin(ctx, person.ID, LoginMethodShortCode)

	return &LoginCodeResult{
		PersonID:    person.ID,
		Meta:        match.Meta,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *LoginCodeService) lookup(ctx context.Context, email string) (*domain.Person, error) {
	person, err := s.people.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("lookup person: %w", err)
	}
	return person, nil
}

func (s *LoginCodeService) afterLogin(ctx context.Context, personID, method string) {
	recordLogin(ctx, s.people, s.events, s.metrics, s.logger, s.now().UTC(), personID, method)
}

// recordLogin performs the best effort bookkeeping following a successful login.
func recordLogin(
	ctx context.Context,
	people port.PersonRepository,
	events port.EventPublisher,
	metrics *telemetry.AuthMetrics,
	log *zap.Logger,
	at time.Time,
	personID string,
	method string,
) {
	metrics.Login(method, telemetry.OutcomeSuccess)

	if err := people.TouchLastLogin(ctx, personID, at); err != nil {
		log.Warn("Failed to update last login", zap.String("person_id", personID), zap.Error(err))
	}

	event := domain.LoginSucceededEvent{
		EventID:  uuid.NewString(),
		PersonID: personID,
		Method:   method,
		LoggedAt: at,
	}
	if err := events.PublishLoginSucceeded(ctx, event); err != nil {
		log.Warn("Failed to publish login event", zap.String("person_id", personID), zap.Error(err))
	}
}
