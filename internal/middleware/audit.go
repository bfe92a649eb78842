package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/services"
)

const maxAuditBody = 2000

var sensitiveValue = regexp.MustCompile(`(?i)("[a-z_]*(?:password|token|secret)[a-z_]*"\s*:\s*)"(?:[^"\\]|\\.)*"`)

// AuditLog records the outcome of every write request to system_logs.
// JSON bodies are kept with password, token and secret values masked.
func AuditLog(audit *services.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			data, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(data))
			body = maskSensitiveFields(string(data))
			if len(body) > maxAuditBody {
				body = body[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		var userID *uint
		actor := "anonymous"
		if user := CurrentUser(c); user != nil {
			userID = &user.ID
			actor = user.Email
		}

		extra := map[string]interface{}{
			"method": method,
			"path":   c.Request.URL.Path,
			"status": status,
		}
		if body != "" {
			extra["body"] = body
		}

		message := formatAuditMessage(actor, method, c.Request.URL.Path, status)
		if status >= http.StatusBadRequest {
			audit.Warning(module, action, message, userID, ClientInfo(c), extra)
			return
		}
		audit.Info(module, action, message, userID, ClientInfo(c), extra)
	}
}

// parseRouteInfo maps "/api/v1/artists/:id" + PATCH to ("artists", "update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/v1/")
	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}

	// Member routes such as /artists/:id/assign_manager name their own action.
	if parts := strings.Split(path, "/"); len(parts) > 1 {
		if last := parts[len(parts)-1]; last != "" && !strings.HasPrefix(last, ":") {
			action = last
		}
	}
	return module, action
}

func formatAuditMessage(actor, method, path string, status int) string {
	outcome := "OK"
	if status >= http.StatusBadRequest {
		outcome = "Failed"
	}
	return fmt.Sprintf("[Audit] %s %s %s -> %s (%d)", actor, method, path, outcome, status)
}

// maskSensitiveFields replaces the string values of password, token and secret keys.
func maskSensitiveFields(body string) string {
	return sensitiveValue.ReplaceAllString(body, `${1}"***"`)
}
