package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bassista/weather_collector/internal/logger"
	"github.com/gin-gonic/gin"
)

// RequestTimeout bounds each request's context. Handlers and the database
// calls they make must honor ctx.Done(); nothing is killed.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		logger.WithComponent("http").Warnf("request %s %s exceeded %v", c.Request.Method, c.Request.URL.Path, d)
		// a written response can no longer be replaced
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": "request timeout",
			})
		}
	}
}
