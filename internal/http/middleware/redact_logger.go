package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders lists extra header names whose values are replaced with
// "[REDACTED]", merged with Authorization, Cookie and Set-Cookie.
type RedactOptions struct {
	MaskHeaders []string
}

// Patterns are applied in this order: UUIDs, emails, CPF/CNPJ, phones.
// Phone is the loosest and would otherwise eat parts of the others.
var (
	redactUUIDRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	redactEmailRE = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+(?:@|%40)[a-z0-9.\-]+\.[a-z]{2,}\b`)
	redactCNPJRE  = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}\-?\d{2}\b`)
	redactCPFRE   = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}\-?\d{2}\b`)
	redactPhoneRE = regexp.MustCompile(`(?:\+|%2B)?\b(?:\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?9?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact scrubs identifiers from s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = redactUUIDRE.ReplaceAllString(s, "[REDACTED:id]")
	s = redactEmailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = redactCNPJRE.ReplaceAllString(s, "[REDACTED:cnpj]")
	s = redactCPFRE.ReplaceAllString(s, "[REDACTED:cpf]")
	s = redactPhoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// RedactingLogger logs each request like Logger, but never logs bodies and
// scrubs the query string and header values with Redact. The request-scoped
// logger it attaches carries only the request ID, method and route.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = Redact(c.Request.URL.Path)
		}
		safeQuery := truncate(Redact(c.Request.URL.RawQuery), maxQueryLogLength)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = Redact(strings.Join(vv, ", "))
		}

		rid, _ := c.Get(requestIDKey)
		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		attachLogger(c, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = l.Error().Str("errors", Redact(c.Errors.String()))
		}

		ev.
			Str("user_id", UserID(c)).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
