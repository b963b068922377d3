package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/internal/core/apperror"
	"fieldops/pkg/logger"
)

// ErrorBody is the error envelope returned to clients.
type ErrorBody struct {
	Status  string         `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error registered with c.Error.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		status := http.StatusInternalServerError
		body := ErrorBody{
			Status:  "error",
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
			}
			status = appErr.HTTPStatus
			body.Code = appErr.Code
			if status < http.StatusInternalServerError {
				body.Message = appErr.Message
				body.Details = appErr.Details
			}
		} else {
			logger.Error(ctx, "unhandled error", "error", err)
		}

		FailIdempotency(c, status, body)
		c.JSON(status, body)
	}
}
