package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/medportal-api/internal/transport/http/middleware"
	"github.com/arklim/medportal-api/internal/usecase"
)

// AuthHandler exposes registration, login and logout endpoints.
type AuthHandler struct {
	auth     Authenticator
	identity IdentityManager
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth Authenticator, identity IdentityManager) *AuthHandler {
	return &AuthHandler{auth: auth, identity: identity}
}

// AuthRouteOptions carries the per-route middleware for the auth group.
type AuthRouteOptions struct {
	RequireAuth gin.HandlerFunc
	Login       []gin.HandlerFunc
	Register    []gin.HandlerFunc
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, opts AuthRouteOptions) {
	r.POST("/register", chain(opts.Register, h.register)...)
	r.POST("/login", chain(opts.Login, h.login)...)
	r.POST("/logout", chain([]gin.HandlerFunc{opts.RequireAuth}, h.logout)...)
	r.GET("/reset-password", h.checkResetToken)
	r.POST("/reset-password", h.confirmPasswordReset)
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	for _, mw := range middlewares {
		if mw != nil {
			handlers = append(handlers, mw)
		}
	}
	return append(handlers, handler)
}

// Register godoc
// @Summary Register a new account
// @Description Creates an unverified account and emails a verification link.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request payload"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	result, err := h.identity.Register(c.Request.Context(), usecase.RegisterInput{
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		Name:       req.Name,
		Surname:    req.Surname,
		Patronymic: req.Patronymic,
		Phone:      req.Phone,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			conflictCase,
			policyCase,
			invalidCase,
			deliveryCase,
		}, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "Verification email sent.",
		User:    newAccountResponse(result.Account),
	})
}

// Login godoc
// @Summary Log in with email or username
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitedResponse
// @Router /auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: "LOGIN_BAD_CREDENTIALS"},
			{Err: usecase.ErrAccountInactive, Status: http.StatusBadRequest, Message: "LOGIN_BAD_CREDENTIALS"},
		}, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   int(result.ExpiresIn.Seconds()),
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidAccessToken, Status: http.StatusUnauthorized, Message: "invalid access token"},
		}, http.StatusInternalServerError, "failed to log out")
		return
	}

	c.Status(http.StatusNoContent)
}

// CheckResetToken godoc
// @Summary Check an emailed reset token before asking for a new password
// @Tags Authentication
// @Produce json
// @Param token query string true "Reset token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/reset-password [get]
func (h *AuthHandler) checkResetToken(c *gin.Context) {
	if err := h.identity.CheckResetToken(c.Request.Context(), c.Query("token")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "RESET_PASSWORD_BAD_TOKEN"},
		}, http.StatusInternalServerError, "failed to check reset token")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Reset token is valid."})
}

// ConfirmPasswordReset godoc
// @Summary Set a new password using an emailed reset token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body ConfirmPasswordResetRequest true "Reset token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) confirmPasswordReset(c *gin.Context) {
	var req ConfirmPasswordResetRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	if err := h.identity.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "RESET_PASSWORD_BAD_TOKEN"},
			policyCase,
			invalidCase,
			notFoundCase,
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset successfully."})
}
