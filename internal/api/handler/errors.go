package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/service"
	"github.com/timmy/talentscore/internal/storage"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotStale):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRetryLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrDispatcherStopped), errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Internal errors are logged and
// their detail withheld from the client.
func respondError(c *gin.Context, err error, extra gin.H) {
	code := statusFor(err)
	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}
	if code == http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request failed: path=%s, error=%v", c.FullPath(), err)
		body["error"] = "internal server error"
		if id := logger.GetRequestID(c.Request.Context()); id != "" {
			body["request_id"] = id
		}
	} else {
		body["error"] = err.Error()
	}
	c.JSON(code, body)
}
