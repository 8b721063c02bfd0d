package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tributaria/internal/auth"
)

// UserIDKey is the Gin context key holding the authenticated user ID.
const UserIDKey = "userID"

// tokenKey holds the raw session token of the request.
const tokenKey = "auth.token"

// Authenticator resolves a session token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// TokenFrom returns the bearer token, or the session cookie when no
// Authorization header is present.
func TokenFrom(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if v, err := c.Cookie(cookieName); err == nil {
		return v
	}
	return ""
}

// RequireAuth rejects requests without a valid session with 401 and
// otherwise stores the user ID under UserIDKey.
func RequireAuth(a Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFrom(c, cookieName)
		if token == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		id, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrTransport) {
				LoggerFrom(c).Error().Err(err).Msg("session lookup failed")
				abortJSON(c, http.StatusServiceUnavailable, "unavailable", "authentication service unavailable")
				return
			}
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
			return
		}

		c.Set(UserIDKey, id.UserID)
		c.Set(tokenKey, token)

		lg := LoggerFrom(c).With().Str("user_id", id.UserID).Logger()
		attachLogger(c, &lg)
		c.Next()
	}
}

// Token returns the session token accepted by RequireAuth.
func Token(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// UserID returns the authenticated user, or "" outside RequireAuth.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
