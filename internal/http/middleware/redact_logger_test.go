package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

const sampleChatID = "123e4567-e89b-12d3-a456-426614174000"

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{" Idempotency-Key "}}))
	r.GET("/api/v1/chats/:id/messages", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "email=ana%40example.com&cpf=123.456.789-09&chat=" + sampleChatID
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/"+sampleChatID+"/messages?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "trib_session=topsecret")
	req.Header.Set("Idempotency-Key", "k-123")
	req.Header.Set("X-Note", "contato ana@example.com")
	req.Header.Set(requestIDHeader, "rid-req")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("want one line, got:\n%s", buf.String())
	}
	l := lines[0]
	if l["level"] != "info" || l["path"] != "/api/v1/chats/:id/messages" || l["request_id"] != "rid-req" {
		t.Fatalf("unexpected fields: %v", l)
	}
	if got := l["query"]; got != "email=[REDACTED:email]&cpf=[REDACTED:cpf]&chat=[REDACTED:id]" {
		t.Fatalf("query = %v", got)
	}
	headers, _ := l["headers"].(map[string]any)
	for _, k := range []string{"Authorization", "Cookie", "Idempotency-Key"} {
		if headers[k] != "[REDACTED]" {
			t.Fatalf("%s not masked: %v", k, headers)
		}
	}
	if headers["X-Note"] != "contato [REDACTED:email]" {
		t.Fatalf("X-Note = %v", headers["X-Note"])
	}
	if strings.Contains(buf.String(), "topsecret") || strings.Contains(buf.String(), "k-123") {
		t.Fatalf("secret leaked: %s", buf.String())
	}
}

func TestRedactingLogger_LevelsAndUnmatchedPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/gin-error", func(c *gin.Context) {
		_ = c.Error(errors.New("lookup ana@example.com"))
		c.Status(http.StatusOK)
	})

	for _, p := range []string{"/api/v1/nope/" + sampleChatID, "/fail", "/gin-error"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	lines := logLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got:\n%s", buf.String())
	}
	if lines[0]["level"] != "warn" || lines[0]["path"] != "/api/v1/nope/[REDACTED:id]" {
		t.Fatalf("unmatched: %v", lines[0])
	}
	if lines[1]["level"] != "error" {
		t.Fatalf("5xx: %v", lines[1])
	}
	if lines[2]["level"] != "error" || !strings.Contains(lines[2]["errors"].(string), "[REDACTED:email]") {
		t.Fatalf("gin error: %v", lines[2])
	}
}

func TestRedactingLogger_LogsUserAfterAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/me", func(c *gin.Context) {
		c.Set(UserIDKey, "u-77")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/me", nil))

	if !strings.Contains(buf.String(), `"user_id":"u-77"`) {
		t.Fatalf("expected user_id in access log: %s", buf.String())
	}
}

func TestRedact(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"contato ana@example.com", "contato [REDACTED:email]"},
		{"email=ana%40example.com", "email=[REDACTED:email]"},
		{"cpf 123.456.789-09", "cpf [REDACTED:cpf]"},
		{"cnpj 12.345.678/0001-95", "cnpj [REDACTED:cnpj]"},
		{"id 123e4567-e89b-12d3-a456-426614174000", "id [REDACTED:id]"},
		{"tel 98765-4321", "tel [REDACTED:phone]"},
		{"nothing here", "nothing here"},
	}
	for _, tc := range cases {
		if got := Redact(tc.in); got != tc.want {
			t.Fatalf("Redact(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
