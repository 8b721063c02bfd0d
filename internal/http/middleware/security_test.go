package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := httptest.NewRecorder()
	securedRouter(SecurityOptions{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Fatalf("%s = %q; want %q", k, got, v)
		}
	}
	for _, k := range []string{
		"Permissions-Policy", "Content-Security-Policy", "Cache-Control",
		"Strict-Transport-Security", "Access-Control-Expose-Headers",
	} {
		if got := w.Header().Get(k); got != "" {
			t.Fatalf("%s should be unset, got %q", k, got)
		}
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	cases := map[string]struct {
		preset string
		want   string
	}{
		"fresh":    {"", requestIDHeader},
		"appended": {"ETag", "ETag, " + requestIDHeader},
		"kept":     {"ETag, " + requestIDHeader, "ETag, " + requestIDHeader},
	}
	for name, tc := range cases {
		preset := func(c *gin.Context) {
			if tc.preset != "" {
				c.Header("Access-Control-Expose-Headers", tc.preset)
			}
			c.Next()
		}
		w := httptest.NewRecorder()
		securedRouter(SecurityOptions{}, RequestID(), preset).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		if got := w.Header().Get("Access-Control-Expose-Headers"); got != tc.want {
			t.Fatalf("%s: expose = %q; want %q", name, got, tc.want)
		}
	}
}

func TestSecurityHeaders_PolicyCSPAndNoStore(t *testing.T) {
	w := httptest.NewRecorder()
	securedRouter(SecurityOptions{EnablePolicy: true, NoStore: true, ContentSecurityPolicy: DefaultCSP}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

	h := w.Header()
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Content-Security-Policy") != DefaultCSP {
		t.Fatalf("CSP = %q", h.Get("Content-Security-Policy"))
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Expires") != "0" {
		t.Fatalf("no-store headers missing: %#v", h)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	cases := []struct {
		name   string
		opt    SecurityOptions
		prep   func(*http.Request)
		expect string
	}{
		{"plain http", SecurityOptions{EnableHSTS: true}, func(*http.Request) {}, ""},
		{"tls default age", SecurityOptions{EnableHSTS: true},
			func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
			"max-age=15552000; includeSubDomains; preload"},
		{"forwarded proto", SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") },
			"max-age=3600; includeSubDomains; preload"},
		{"disabled", SecurityOptions{},
			func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		tc.prep(req)
		w := httptest.NewRecorder()
		securedRouter(tc.opt).ServeHTTP(w, req)
		if got := w.Header().Get("Strict-Transport-Security"); got != tc.expect {
			t.Fatalf("%s: HSTS = %q; want %q", tc.name, got, tc.expect)
		}
	}
}

func TestNoStoreMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/auth", NoStoreMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth", nil))
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Pragma") != "no-cache" {
		t.Fatalf("missing no-store headers: %#v", w.Header())
	}
}
