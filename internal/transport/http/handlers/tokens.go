package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/security"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/usecase"
)

// ConfirmationTokens issues and verifies signed confirmation links.
type ConfirmationTokens interface {
	Issue(ctx context.Context, kind domain.TokenKind, params security.Params) (string, error)
	Verify(ctx context.Context, kind domain.TokenKind, token string, params security.Params) (domain.TokenVerification, error)
	RotateAutoLoginSalt(ctx context.Context, personID string) error
}

// TokenHandler exposes the confirmation token endpoints.
type TokenHandler struct {
	tokens ConfirmationTokens
}

// NewTokenHandler constructs TokenHandler.
func NewTokenHandler(tokens ConfirmationTokens) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// RegisterRoutes binds token routes.
func (h *TokenHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tokens/:kind", h.issue)
	r.POST("/tokens/:kind/verify", h.verify)
	r.POST("/people/:id/auto-login-salt/rotate", h.rotateSalt)
}

var tokenErrors = []ErrorCase{
	{Err: usecase.ErrUnknownTokenKind, Status: http.StatusNotFound, Message: "unknown token kind"},
	{Err: security.ErrMissingTokenParams, Status: http.StatusBadRequest, Message: "missing token parameters"},
	{Err: usecase.ErrPersonNotFound, Status: http.StatusNotFound, Message: "person not found"},
}

// issue godoc
// @Summary Sign a confirmation token
// @Tags Tokens
// @Accept json
// @Produce json
// @Param kind path string true "Token kind"
// @Param request body TokenIssueRequest true "Token parameters"
// @Success 201 {object} TokenIssueResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/tokens/{kind} [post]
func (h *TokenHandler) issue(c *gin.Context) {
	var req TokenIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid token payload"))
		return
	}

	token, err := h.tokens.Issue(c.Request.Context(), domain.TokenKind(c.Param("kind")), security.Params(req.Params))
	if err != nil {
		RespondWithMappedError(c, err, tokenErrors, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusCreated, TokenIssueResponse{Token: token})
}

// verify godoc
// @Summary Verify a confirmation token
// @Tags Tokens
// @Accept json
// @Produce json
// @Param kind path string true "Token kind"
// @Param request body TokenVerifyRequest true "Token and parameters"
// @Success 200 {object} TokenVerifyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/tokens/{kind}/verify [post]
func (h *TokenHandler) verify(c *gin.Context) {
	var req TokenVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid token payload"))
		return
	}

	result, err := h.tokens.Verify(c.Request.Context(), domain.TokenKind(c.Param("kind")), req.Token, security.Params(req.Params))
	if err != nil {
		RespondWithMappedError(c, err, tokenErrors, http.StatusInternalServerError, "failed to verify token")
		return
	}

	c.JSON(http.StatusOK, TokenVerifyResponse{Valid: result.Valid, Expired: result.Expired})
}

// rotateSalt godoc
// @Summary Invalidate every connection token of a person
// @Tags Tokens
// @Param id path string true "Person ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/people/{id}/auto-login-salt/rotate [post]
func (h *TokenHandler) rotateSalt(c *gin.Context) {
	if err := h.tokens.RotateAutoLoginSalt(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, tokenErrors, http.StatusInternalServerError, "failed to rotate auto login salt")
		return
	}

	c.Status(http.StatusNoContent)
}
