package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// CodeRequestRequest asks for a login code to be emailed.
type CodeRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// CodeRequestResponse acknowledges a code request. The code itself only travels by email.
type CodeRequestResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeCheckRequest submits the code received by email.
type CodeCheckRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// CodeCheckResponse is returned once the code matched.
type CodeCheckResponse struct {
	PersonID    string         `json:"person_id"`
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// PasswordLoginRequest defines the payload for the password login endpoint.
type PasswordLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful password login.
type LoginResponse struct {
	PersonID    string    `json:"person_id"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenIssueRequest carries the parameters a confirmation token is bound to.
type TokenIssueRequest struct {
	Params map[string]string `json:"params" binding:"required"`
}

// TokenIssueResponse returns a freshly signed confirmation token.
type TokenIssueResponse struct {
	Token string `json:"token"`
}

// TokenVerifyRequest submits a confirmation token with the parameters it should be bound to.
type TokenVerifyRequest struct {
	Token  string            `json:"token" binding:"required"`
	Params map[string]string `json:"params"`
}

// TokenVerifyResponse reports the verification outcome. Expired is only set for invalid tokens.
type TokenVerifyResponse struct {
	Valid   bool `json:"valid"`
	Expired bool `json:"expired"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
