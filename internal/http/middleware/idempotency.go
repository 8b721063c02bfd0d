package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's retry key on POSTs.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for the request's key.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Defaults to 200.
	MaxLen int
	// Pattern restricts the alphabet. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope picks the resource the key is bound to. Defaults to the ":id"
	// route parameter.
	Scope func(*gin.Context) string
	// Now is the clock handed to Lookup.
	Now func() time.Time
}

// IdempotencyLookup reports whether a live stored result exists for
// (userID, scope, key). TTL is enforced by the implementation. Errors are
// logged and treated as "not found".
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator validates Idempotency-Key and flags replays. It must
// run after RequireAuth: without a user no lookup is made.
// Handlers serve the replayed payload themselves.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}
	scope := opts.Scope
	if scope == nil {
		scope = func(c *gin.Context) string { return c.Param("id") }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		uid := UserID(c)
		if lookup != nil && uid != "" {
			exists, err := lookup(c.Request.Context(), uid, scope(c), key, now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
