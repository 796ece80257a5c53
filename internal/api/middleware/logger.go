package middleware

import (
	"time"

	"affimporter/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request through the service logger.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		line := log.With("request_id", RequestIDFrom(c))
		format := "[%s] %s %s %d %s %s"
		args := []interface{}{
			start.Format(time.RFC3339),
			c.Request.Method,
			path,
			status,
			time.Since(start),
			c.ClientIP(),
		}

		switch {
		case status >= 500:
			line.Error(format, args...)
		case status >= 400:
			line.Warn(format, args...)
		default:
			line.Info(format, args...)
		}
	}
}
