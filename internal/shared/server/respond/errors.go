package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/telemetry"
)

// ErrorBody is the error envelope every endpoint returns.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts the chain with the envelope. 5xx are logged as errors and
// everything else as warnings, tagged with whichever workflow ids the
// handler already resolved.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	for _, key := range [...]string{"tenderId", "vendorId", "documentId"} {
		if v, ok := c.Get(key); ok {
			fields[key] = v
		}
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// Invalid rejects malformed input with 400 validation_error.
func Invalid(c *gin.Context, message string, details any) {
	Error(c, http.StatusBadRequest, "validation_error", message, details)
}
