package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	unauthorizedProblemType  = "https://actionpopulaire.fr/errors/unauthorized"
	unauthorizedProblemTitle = "Unauthorized"
)

// RequireServiceToken admits only callers presenting "Authorization: Bearer <token>". The routes
// it guards mint and revoke login credentials, so an empty token rejects every request.
func RequireServiceToken(token string) gin.HandlerFunc {
	want := sha256.Sum256([]byte(token))

	return func(c *gin.Context) {
		if token == "" {
			respondUnauthorized(c, "service authentication is not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondUnauthorized(c, "missing authorization header")
			return
		}

		scheme, presented, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			respondUnauthorized(c, "invalid authorization format: expected 'Bearer <token>'")
			return
		}

		got := sha256.Sum256([]byte(strings.TrimSpace(presented)))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			respondUnauthorized(c, "invalid service token")
			return
		}

		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", `Bearer realm="auth"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, ProblemDetails{
		Type:     unauthorizedProblemType,
		Title:    unauthorizedProblemTitle,
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: instance(c),
		TraceID:  GetTraceID(c),
	})
}
