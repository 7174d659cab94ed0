package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/telemetry"
)

// contextLogFields are the workflow ids handlers stash in the gin context.
var contextLogFields = [...]struct{ key, field string }{
	{"tenderId", "tender_id"},
	{"vendorId", "vendor_id"},
	{"documentId", "document_id"},
	{"upstreamError", "upstream_error"},
}

// quietRoutes are scraped or probed constantly and only logged at debug.
var quietRoutes = map[string]struct{}{
	"/metrics":       {},
	"/api/v1/health": {},
}

// Logging emits one structured line per request, leveled by status.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       route,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes_out":   c.Writer.Size(),
			"client_ip":   c.ClientIP(),
		}
		if userID := UserIDFromContext(c); userID != "" {
			fields["user_id"] = userID
		}
		for _, f := range contextLogFields {
			if v, ok := c.Get(f.key); ok {
				fields[f.field] = v
			}
		}

		switch _, quiet := quietRoutes[route]; {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case quiet && status < http.StatusBadRequest:
			telemetry.Debug("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}
