package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/http/middleware"
	"github.com/tbourn/tributaria/internal/services"
)

func TestCreateChat(t *testing.T) {
	e := newEnv(t)
	tok, uid := e.signUp(t, "ana@example.com")

	w := e.do(t, http.MethodPost, "/chats", tok, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	ch := decodeBody[domain.Chat](t, w)
	if ch.UserID != uid || !services.IsPlaceholderTitle(ch.Title) {
		t.Fatalf("unexpected chat: %+v", ch)
	}

	w = e.do(t, http.MethodPost, "/chats", tok, CreateChatRequest{Title: "  Dúvidas   sobre IBS "})
	if got := decodeBody[domain.Chat](t, w); got.Title != "Dúvidas sobre IBS" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestCreateChat_Unauthorized(t *testing.T) {
	e := newEnv(t)
	expectCode(t, e.do(t, http.MethodPost, "/chats", "", nil), http.StatusUnauthorized, ErrCodeUnauthorized)
	expectCode(t, e.do(t, http.MethodPost, "/chats", "garbage", nil), http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestCreateChat_BadJSON(t *testing.T) {
	e := newEnv(t)
	tok, _ := e.signUp(t, "ana@example.com")

	req := httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	expectCode(t, w, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestListChats_PaginationAndETag(t *testing.T) {
	e := newEnv(t)
	tok, _ := e.signUp(t, "ana@example.com")
	other, _ := e.signUp(t, "bia@example.com")

	for i := 0; i < 3; i++ {
		e.do(t, http.MethodPost, "/chats", tok, nil)
	}
	e.do(t, http.MethodPost, "/chats", other, nil)

	w := e.do(t, http.MethodGet, "/chats?page=1&page_size=2", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody[ListChatsResponse](t, w)
	if len(resp.Chats) != 2 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp.Pagination)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	w = e.do(t, http.MethodGet, "/chats?page=1&page_size=2", tok, nil, withHeader("If-None-Match", etag))
	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d; want 304", w.Code)
	}

	// A different page must not match the same tag.
	w = e.do(t, http.MethodGet, "/chats?page=2&page_size=2", tok, nil, withHeader("If-None-Match", etag))
	if w.Code != http.StatusOK {
		t.Fatalf("page 2 status = %d", w.Code)
	}
	if got := decodeBody[ListChatsResponse](t, w); len(got.Chats) != 1 || got.Pagination.HasNext {
		t.Fatalf("unexpected page 2: %+v", got)
	}
}

func TestUpdateChatTitle(t *testing.T) {
	e := newEnv(t)
	tok, _ := e.signUp(t, "ana@example.com")
	other, _ := e.signUp(t, "bia@example.com")

	ch := decodeBody[domain.Chat](t, e.do(t, http.MethodPost, "/chats", tok, nil))

	cases := []struct {
		name   string
		token  string
		id     string
		body   any
		status int
		code   string
	}{
		{"ok", tok, ch.ID, UpdateChatTitleRequest{Title: "Reforma e MEI"}, http.StatusNoContent, ""},
		{"bad id", tok, "not-a-uuid", UpdateChatTitleRequest{Title: "x"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"blank", tok, ch.ID, UpdateChatTitleRequest{Title: "   "}, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing", tok, uuid.NewString(), UpdateChatTitleRequest{Title: "x"}, http.StatusNotFound, ErrCodeNotFound},
		{"foreign", other, ch.ID, UpdateChatTitleRequest{Title: "x"}, http.StatusForbidden, ErrCodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPut, "/chats/"+tc.id+"/title", tc.token, tc.body)
			expectCode(t, w, tc.status, tc.code)
		})
	}

	got, err := e.chats.Get(context.Background(), ch.UserID, ch.ID)
	if err != nil || got.Title != "Reforma e MEI" {
		t.Fatalf("title not updated: %+v, %v", got, err)
	}
}

type failingChats struct{ ChatService }

func (failingChats) ListPage(context.Context, string, int, int) ([]domain.Chat, int64, error) {
	return nil, 0, &services.StoreError{Kind: services.ErrTransport, Op: "list_conversations", Err: errors.New("db down")}
}

func TestListChats_StoreUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(Deps{Chats: failingChats{}})

	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) { c.Set(middleware.UserIDKey, "u1"); c.Next() })
	r.GET("/chats", h.ListChats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats", nil))
	expectCode(t, w, http.StatusServiceUnavailable, ErrCodeUnavailable)
}

func TestClampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query          string
		page, pageSize int
	}{
		{"", 1, 20},
		{"page=0&page_size=0", 1, 1},
		{"page=-3&page_size=500", 1, 100},
		{"page=4&page_size=15", 4, 15},
		{"page=x&page_size=y", 1, 20},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		p, ps := clampPagination(c)
		if p != tc.page || ps != tc.pageSize {
			t.Fatalf("%q -> (%d,%d); want (%d,%d)", tc.query, p, ps, tc.page, tc.pageSize)
		}
	}
}
