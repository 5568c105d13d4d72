package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is matched by every *RateLimitExceededError.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrRateLimiterUnavailable indicates the bucket store could not be reached. Callers refuse the operation.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrInvalidEmail indicates the submitted address is not a syntactically valid email.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPersonNotFound indicates no person matches the identifier.
	ErrPersonNotFound = errors.New("person not found")
	// ErrInactiveAccount indicates the person exists but may not log in.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrCodeMalformed indicates the submitted short code does not have the expected shape.
	ErrCodeMalformed = errors.New("malformed short code")
	// ErrCodeInvalid indicates the submitted short code matches no live code of the person.
	ErrCodeInvalid = errors.New("invalid or expired short code")
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownTokenKind indicates no confirmation token family has this name.
	ErrUnknownTokenKind = errors.New("unknown token kind")
	// ErrSubjectRequired indicates a short code operation was called without subject.
	ErrSubjectRequired = errors.New("subject id is required")
)

// RateLimitExceededError reports which bucket refused the operation.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

// Is lets errors.Is(err, ErrRateLimited) match regardless of scope.
func (e *RateLimitExceededError) Is(target error) bool {
	return target == ErrRateLimited
}
