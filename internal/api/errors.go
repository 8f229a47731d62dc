package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/auth"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/worker"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, models.ErrTransient),
		errors.Is(err, worker.ErrQueueFull),
		errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError answers with the status err maps to. Messages of 5xx errors
// are logged and replaced so storage details stay server side.
func writeError(c *gin.Context, prefix string, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", requestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = http.StatusText(code)
	}
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	c.JSON(code, gin.H{"error": msg})
}
