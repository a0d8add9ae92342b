package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/medportal-api/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Unmapped errors are attached to the gin context so the access logger records them.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
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

var (
	notFoundCase  = ErrorCase{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "User not found."}
	forbiddenCase = ErrorCase{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "User is not allowed to access this resource."}
	conflictCase  = ErrorCase{Err: usecase.ErrConflict, Status: http.StatusBadRequest, Message: "User with this email or username already exists."}
	invalidCase   = ErrorCase{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid request payload"}
	policyCase    = ErrorCase{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"}
	deliveryCase  = ErrorCase{Err: usecase.ErrDeliveryFailed, Status: http.StatusInternalServerError, Message: "failed to send email"}
)
