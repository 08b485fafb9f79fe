package respond

import (
	"github.com/gin-gonic/gin"

	"underwriting-backend/internal/shared/telemetry"
)

// ErrorResponse is the flat error envelope returned by every endpoint.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	ErrorWith(c, status, code, message, details, nil)
}

// ErrorWith sends a standardized error response with extra top-level fields merged in.
func ErrorWith(c *gin.Context, status int, code, message string, details interface{}, extra map[string]any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	telemetry.Error("http.error", fields)

	if len(extra) == 0 {
		c.AbortWithStatusJSON(status, ErrorResponse{
			Error:   message,
			Code:    code,
			Details: details,
		})
		return
	}

	body := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		body[k] = v
	}
	body["error"] = message
	if code != "" {
		body["code"] = code
	}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}
