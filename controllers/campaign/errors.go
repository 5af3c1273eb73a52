package campaign

import (
	"context"
	"errors"
	"net/http"

	"campaign_workflow/models"

	"github.com/gin-gonic/gin"
)

// statusFor maps the service error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrInvalidPayload):
		return http.StatusBadRequest, "invalid_payload"
	case errors.Is(err, models.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, models.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, models.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = models.ErrInternal.Error()
	}
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error(), "code": "invalid_payload"})
}
