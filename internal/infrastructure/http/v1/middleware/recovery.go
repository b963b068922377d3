package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"fieldops/internal/core/apperror"
	"fieldops/pkg/logger"
)

// Recovery turns panics into INTERNAL_ERROR responses and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)
				_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", err)))
				// ErrorHandler runs inside this frame and never sees the panic.
				body := ErrorBody{
					Status:  "error",
					Code:    apperror.CodeInternal,
					Message: "Internal server error",
					Details: map[string]any{"request_id": c.GetString("request_id")},
				}
				FailIdempotency(c, http.StatusInternalServerError, body)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, body)
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
