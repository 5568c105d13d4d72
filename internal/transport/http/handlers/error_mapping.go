package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/transport/http/middleware"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Rate limit refusals and an unreachable bucket store are handled first, for every endpoint.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var limited *usecase.RateLimitExceededError
	if errors.As(err, &limited) {
		middleware.RespondRateLimited(c, limited.RetryAfter)
		return
	}
	if errors.Is(err, usecase.ErrRateLimiterUnavailable) {
		_ = c.Error(err)
		middleware.RespondUnavailable(c, "Authentication is temporarily unavailable.")
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
