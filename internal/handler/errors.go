package handler

import (
	"errors"
	"net/http"

	"socialprofiles/backend/internal/accounts"
	"socialprofiles/backend/internal/logging"
	"socialprofiles/backend/internal/profiles"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch profiles.KindOf(err) {
	case profiles.KindNotFound:
		return http.StatusNotFound
	case profiles.KindConflict:
		return http.StatusConflict
	case profiles.KindForbidden:
		return http.StatusForbidden
	case profiles.KindInvalid:
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, accounts.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, accounts.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, accounts.ErrInvalidUsername):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as an ErrorResponse. Unclassified errors are logged
// and hidden behind a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c, logger).Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, ErrorResponse{Error: "Internal server error"})
		return
	}

	// Domain errors carry the operation as a prefix; the client only needs the reason.
	msg := err.Error()
	var opErr *profiles.Error
	if errors.As(err, &opErr) {
		msg = opErr.Err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
