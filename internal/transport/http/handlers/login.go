package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/transport/http/middleware"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/usecase"
)

const tokenTypeBearer = "Bearer"

// LoginCodeFlow is the short code login modality.
type LoginCodeFlow interface {
	RequestCode(ctx context.Context, req usecase.LoginCodeRequest) (*usecase.LoginCodeIssued, error)
	CheckCode(ctx context.Context, in usecase.LoginCodeCheck) (*usecase.LoginCodeResult, error)
}

// PasswordLogin is the password login modality.
type PasswordLogin interface {
	Login(ctx context.Context, in usecase.PasswordLoginInput) (*usecase.LoginResult, error)
}

// LoginHandler exposes the login endpoints.
type LoginHandler struct {
	codes     LoginCodeFlow
	passwords PasswordLogin
}

// NewLoginHandler constructs LoginHandler. A nil modality answers 503.
func NewLoginHandler(codes LoginCodeFlow, passwords PasswordLogin) *LoginHandler {
	return &LoginHandler{codes: codes, passwords: passwords}
}

// RegisterRoutes binds login routes under the auth group.
func (h *LoginHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/code/request", h.requestCode)
	r.POST("/code/check", h.checkCode)
	r.POST("/password/login", h.passwordLogin)
}

var codeRequestErrors = []ErrorCase{
	{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email address"},
	{Err: usecase.ErrPersonNotFound, Status: http.StatusNotFound, Message: "no account is registered with this email"},
	{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
}

// requestCode godoc
// @Summary Request a login code
// @Description Emails a short login code to the person owning the address.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body CodeRequestRequest true "Code request payload"
// @Success 202 {object} CodeRequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/auth/code/request [post]
func (h *LoginHandler) requestCode(c *gin.Context) {
	if h.codes == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "code login unavailable"))
		return
	}

	var req CodeRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid code request payload"))
		return
	}

	issued, err := h.codes.RequestCode(c.Request.Context(), usecase.LoginCodeRequest{
		Email: req.Email,
		IP:    middleware.GetRequestContext(c).IP,
	})
	if err != nil {
		RespondWithMappedError(c, err, codeRequestErrors, http.StatusInternalServerError, "failed to send login code")
		return
	}

	c.JSON(http.StatusAccepted, CodeRequestResponse{ExpiresAt: issued.ExpiresAt})
}

var codeCheckErrors = []ErrorCase{
	{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email address"},
	{Err: usecase.ErrCodeMalformed, Status: http.StatusBadRequest, Message: "malformed login code"},
	{Err: usecase.ErrCodeInvalid, Status: http.StatusUnauthorized, Message: "invalid or expired login code"},
	{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
}

// checkCode godoc
// @Summary Log in with a code
// @Description Exchanges a live login code for an access token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body CodeCheckRequest true "Code check payload"
// @Success 200 {object} CodeCheckResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/auth/code/check [post]
func (h *LoginHandler) checkCode(c *gin.Context) {
	if h.codes == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "code login unavailable"))
		return
	}

	var req CodeCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid code check payload"))
		return
	}

	result, err := h.codes.CheckCode(c.Request.Context(), usecase.LoginCodeCheck{
		Email: req.Email,
		Code:  req.Code,
		IP:    middleware.GetRequestContext(c).IP,
	})
	if err != nil {
		RespondWithMappedError(c, err, codeCheckErrors, http.StatusInternalServerError, "failed to check login code")
		return
	}

	c.JSON(http.StatusOK, CodeCheckResponse{
		PersonID:    result.PersonID,
		AccessToken: result.AccessToken,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   result.ExpiresAt,
		Meta:        result.Meta,
	})
}

var passwordLoginErrors = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
	{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
}

// passwordLogin godoc
// @Summary Log in with a password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body PasswordLoginRequest true "Login payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/auth/password/login [post]
func (h *LoginHandler) passwordLogin(c *gin.Context) {
	if h.passwords == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "password login unavailable"))
		return
	}

	var req PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.passwords.Login(c.Request.Context(), usecase.PasswordLoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       middleware.GetRequestContext(c).IP,
	})
	if err != nil {
		RespondWithMappedError(c, err, passwordLoginErrors, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		PersonID:    result.PersonID,
		AccessToken: result.AccessToken,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   result.ExpiresAt,
	})
}
