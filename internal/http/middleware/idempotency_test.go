package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	userID, scope, key string
	now                time.Time
}

func idemRouter(t *testing.T, opts IdempotencyOptions, lookup IdempotencyLookup, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	})
	r.POST("/chats/:id/messages", IdempotencyValidator(opts, lookup), func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{
			"key":    key,
			"replay": IsReplay(c),
			"bypass": IsRateBypass(c),
		})
	})
	return r
}

func postWithKey(r http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
	return m
}

func TestIdempotency_NoHeaderIsNoop(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}
	w := postWithKey(idemRouter(t, IdempotencyOptions{}, lookup, "u1"), "/chats/c1/messages", "")
	m := decode(t, w)
	if m["key"] != "" || m["replay"] != false || called {
		t.Fatalf("expected no-op, got %v (lookup called=%v)", m, called)
	}
}

func TestIdempotency_RejectsBadKeys(t *testing.T) {
	r := idemRouter(t, IdempotencyOptions{MaxLen: 8}, nil, "u1")
	for _, key := range []string{"has space", "toolong-key", "semi;colon"} {
		w := postWithKey(r, "/chats/c1/messages", key)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status %d", key, w.Code)
		}
		if m := decode(t, w); m["code"] != "bad_idempotency_key" {
			t.Fatalf("key %q: body %v", key, m)
		}
	}
}

func TestIdempotency_CustomPattern(t *testing.T) {
	r := idemRouter(t, IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil, "u1")
	if w := postWithKey(r, "/chats/c1/messages", "abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("pattern not applied: %d", w.Code)
	}
	if w := postWithKey(r, "/chats/c1/messages", "123"); w.Code != http.StatusOK {
		t.Fatalf("digits rejected: %d", w.Code)
	}
}

func TestIdempotency_ReplayFlagsAndLookupArgs(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var got lookupCall
	lookup := func(_ context.Context, userID, scope, key string, now time.Time) (bool, error) {
		got = lookupCall{userID, scope, key, now}
		return true, nil
	}
	opts := IdempotencyOptions{Now: func() time.Time { return fixed }}
	w := postWithKey(idemRouter(t, opts, lookup, "u1"), "/chats/c42/messages", "k-1")

	m := decode(t, w)
	if m["key"] != "k-1" || m["replay"] != true || m["bypass"] != true {
		t.Fatalf("unexpected flags: %v", m)
	}
	want := lookupCall{"u1", "c42", "k-1", fixed}
	if got != want {
		t.Fatalf("lookup args = %+v; want %+v", got, want)
	}
}

func TestIdempotency_CustomScope(t *testing.T) {
	var scope string
	lookup := func(_ context.Context, _, s, _ string, _ time.Time) (bool, error) {
		scope = s
		return false, nil
	}
	opts := IdempotencyOptions{Scope: func(*gin.Context) string { return "session" }}
	postWithKey(idemRouter(t, opts, lookup, "u1"), "/chats/c1/messages", "k")
	if scope != "session" {
		t.Fatalf("scope = %q", scope)
	}
}

func TestIdempotency_LookupErrorIsNotReplay(t *testing.T) {
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		return false, errors.New("db down")
	}
	w := postWithKey(idemRouter(t, IdempotencyOptions{}, lookup, "u1"), "/chats/c1/messages", "k")
	if w.Code != http.StatusOK {
		t.Fatalf("lookup failure should not block: %d", w.Code)
	}
	if m := decode(t, w); m["replay"] != false {
		t.Fatalf("replay on lookup error: %v", m)
	}
}

func TestIdempotency_NoUserSkipsLookup(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}
	w := postWithKey(idemRouter(t, IdempotencyOptions{}, lookup, ""), "/chats/c1/messages", "k")
	m := decode(t, w)
	if called || m["replay"] != false {
		t.Fatalf("lookup must not run without a user")
	}
	if !strings.EqualFold(m["key"].(string), "k") {
		t.Fatalf("key should still be stashed: %v", m)
	}
}
