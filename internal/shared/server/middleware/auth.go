package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/auth"
	"tender-evaluator/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userRoleKey  = "userRole"
	sessionIDKey = "sessionId"
	tokenKey     = "bearerToken"

	sessionHeader = "X-Session-Id"
)

var publicPaths = map[string]struct{}{
	"/api/v1/health":     {},
	"/api/v1/auth/login": {},
	"/metrics":           {},
}

// Identity is the caller as resolved by Auth. Token is the tender backend
// bearer token used on the caller's behalf.
type Identity struct {
	UserID    string
	Role      string
	SessionID string
	Token     string
}

// SessionResolver maps a session id to the identity it was issued for.
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (Identity, error)
}

// Auth accepts either a backend bearer token or a session id issued by
// /auth/login and stores the caller identity in context.
func Auth(verifier *auth.Verifier, sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			respond.NoContent(c)
			return
		}
		if _, ok := publicPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" || verifier == nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			SetIdentity(c, Identity{UserID: claims.Subject, Role: claims.Role, Token: token})
			c.Next()
			return
		}

		sessionID := strings.TrimSpace(c.GetHeader(sessionHeader))
		if sessionID == "" || sessions == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		id, err := sessions.ResolveSession(c.Request.Context(), sessionID)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "session expired or unknown", nil)
			return
		}
		id.SessionID = sessionID
		SetIdentity(c, id)
		c.Next()
	}
}

// SetIdentity stores id in the request context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(userIDKey, id.UserID)
	if id.Role != "" {
		c.Set(userRoleKey, id.Role)
	}
	if id.SessionID != "" {
		c.Set(sessionIDKey, id.SessionID)
	}
	if id.Token != "" {
		c.Set(tokenKey, id.Token)
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

// RoleFromContext fetches the backend role of the caller.
func RoleFromContext(c *gin.Context) string {
	return stringFromContext(c, userRoleKey)
}

// SessionIDFromContext returns the session id when the caller used one.
func SessionIDFromContext(c *gin.Context) string {
	return stringFromContext(c, sessionIDKey)
}

// BearerTokenFromContext returns the backend token to act with.
func BearerTokenFromContext(c *gin.Context) string {
	return stringFromContext(c, tokenKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
