package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/transport/http/middleware"
	"github.com/arklim/medportal-api/internal/usecase"
)

// UsersHandler exposes the account lifecycle endpoints under /users.
type UsersHandler struct {
	identity IdentityManager
}

// NewUsersHandler constructs UsersHandler.
func NewUsersHandler(identity IdentityManager) *UsersHandler {
	return &UsersHandler{identity: identity}
}

// UsersRouteOptions carries the per-route middleware for the users group.
type UsersRouteOptions struct {
	RequireAuth    gin.HandlerFunc
	ForgotPassword []gin.HandlerFunc
}

// RegisterRoutes binds the /users routes.
func (h *UsersHandler) RegisterRoutes(r *gin.RouterGroup, opts UsersRouteOptions) {
	r.POST("/forgot_password", chain(opts.ForgotPassword, h.forgotPassword)...)

	authed := r.Group("")
	authed.Use(opts.RequireAuth)
	authed.GET("/me", h.me)
	authed.GET("/verify/:token", h.verify)
	authed.PUT("/update_user", h.updateUser)
	authed.DELETE("/delete/:email", h.deleteUser)
	authed.POST("/reset_password", h.resetPassword)
}

func callerID(c *gin.Context) (int64, bool) {
	id, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
	}
	return id, ok
}

// Me godoc
// @Summary Current account profile
// @Description Returns the caller's account with role, doctor card or appointments.
// @Tags Users
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/me [get]
func (h *UsersHandler) me(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	profile, err := h.identity.Profile(c.Request.Context(), caller)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{notFoundCase}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(*profile))
}

func (h *UsersHandler) verify(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	account, err := h.identity.Verify(c.Request.Context(), c.Param("token"), caller)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "Verification token is invalid or user not found."},
			forbiddenCase,
		}, http.StatusInternalServerError, "failed to verify user")
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		Message: "User verified successfully.",
		User:    newAccountResponse(*account),
	})
}

func (h *UsersHandler) updateUser(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	target := req.ID
	if target == 0 {
		target = caller
	}

	account, err := h.identity.UpdateProfile(c.Request.Context(), caller, target, domain.ProfileFields{
		Username:   req.Username,
		Name:       req.Name,
		Surname:    req.Surname,
		Patronymic: req.Patronymic,
		Phone:      req.Phone,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			notFoundCase,
			forbiddenCase,
			conflictCase,
			invalidCase,
		}, http.StatusInternalServerError, "failed to update user")
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(*account))
}

func (h *UsersHandler) deleteUser(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	account, err := h.identity.Delete(c.Request.Context(), c.Param("email"), caller)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			notFoundCase,
			forbiddenCase,
		}, http.StatusInternalServerError, "failed to delete user")
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(*account))
}

// ForgotPassword godoc
// @Summary Request a password reset email
// @Tags Users
// @Accept json
// @Produce json
// @Param email query string false "Account email"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitedResponse
// @Router /api/v1/users/forgot_password [post]
func (h *UsersHandler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if err := h.identity.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			notFoundCase,
			invalidCase,
			deliveryCase,
		}, http.StatusInternalServerError, "failed to request password reset")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Email sent successfully."})
}

func (h *UsersHandler) resetPassword(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "new password is required"))
		return
	}

	if err := h.identity.ResetPassword(c.Request.Context(), caller, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			notFoundCase,
			policyCase,
			invalidCase,
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset successfully."})
}
