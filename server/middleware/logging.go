package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/tablemut/logger"
)

// RequestRecorder receives request metrics.
type RequestRecorder interface {
	RecordRequestStart(ctx context.Context)
	RecordRequestEnd(ctx context.Context, route, method string, status int, duration time.Duration)
}

// RequestLogger logs every request with method, route, status and duration,
// and reports it to rec when rec is not nil. Health checks are skipped.
func RequestLogger(log *logger.Logger, rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isHealthEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if rec != nil {
			rec.RecordRequestStart(ctx)
		}
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if rec != nil {
			rec.RecordRequestEnd(ctx, route, c.Request.Method, status, latency)
		}

		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"client", c.ClientIP(),
			logger.FieldDuration, latency.Milliseconds(),
			logger.FieldRequestID, GetRequestID(c),
		)
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}
		if status >= 500 {
			fields["size"] = c.Writer.Size()
		}
		if latency > 500*time.Millisecond {
			fields["slow"] = true
		}
		logByStatus(log, fields, status)
	}
}

func isHealthEndpoint(path string) bool {
	switch path {
	case "/health", "/alive", "/ready":
		return true
	}
	return false
}

// logByStatus logs request fields at the appropriate level for the status code.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
