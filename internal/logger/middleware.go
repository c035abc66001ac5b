package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDKey = "request_id"

// Middleware logs every request once it has been handled.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		event := Log.Info()
		if c.Writer.Status() >= 500 {
			event = Log.Error()
		} else if c.Writer.Status() >= 400 {
			event = Log.Warn()
		}

		// Tokens are bearer credentials, log the route template instead of the path.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event.
			Str(RequestIDKey, requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
