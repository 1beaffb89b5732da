package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/aiandyou50/CandleSpinner-sub000/types"
	"github.com/gin-gonic/gin"
)

// Timeout bounds a request: the handler's context is cancelled after the
// given duration and the client gets a 408. Long-lived streams (the win
// feed) must not be routed through this middleware.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout, types.ErrorResponse{
				StatusCode: http.StatusRequestTimeout,
				IsSuccess:  false,
				Error: types.ErrorDetail{
					Timestamp:    time.Now().Format(time.RFC3339),
					Path:         c.Request.URL.Path,
					ErrorMessage: "Request timeout",
				},
			})
		}
	}
}
