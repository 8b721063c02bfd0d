package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/tributaria/internal/auth"
	"github.com/tbourn/tributaria/internal/http/middleware"
	"github.com/tbourn/tributaria/internal/repo"
	"github.com/tbourn/tributaria/internal/services"
	"github.com/tbourn/tributaria/internal/session"
)

const testCookie = "trib_session"

// stubReplier answers every question with the same Markdown.
type stubReplier struct {
	answer string
	err    error
	calls  atomic.Int32
}

func (r *stubReplier) Ask(ctx context.Context, text, chatID, userID string) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	return r.answer, nil
}

type testEnv struct {
	db      *gorm.DB
	auth    *auth.Service
	chats   *services.ChatService
	msgs    *services.MessageService
	plans   *services.SubscriptionService
	reg     *session.Registry
	replier *stubReplier
	h       *Handlers
	r       *gin.Engine
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newEnv wires real services over an in-memory database, routed the same
// way the production router does.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	authSvc := auth.NewService(db, &auth.Tokens{Secret: []byte("handler-test-secret"), TTL: time.Hour})
	authSvc.HashCost = bcrypt.MinCost

	chats := services.NewChatService(db, repo.ChatStore{})
	msgs := services.NewMessageService(db)
	plans := &services.SubscriptionService{DB: db}
	rep := &stubReplier{answer: "## Resposta\nO IBS é o imposto sobre bens e serviços."}
	reg := session.NewRegistry(chats, msgs, rep, session.Options{ReplyTimeout: 2 * time.Second})
	authSvc.OnSessionChange(reg.HandleSessionEvent)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})

	h := New(Deps{
		Chats:    chats,
		Messages: msgs,
		Auth:     authSvc,
		Plans:    plans,
		Sessions: reg,
		Cookie:   CookieOptions{Name: testCookie},
	})

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/signin", h.SignIn)
	r.POST("/auth/signout", h.SignOut)
	r.POST("/auth/refresh", h.Refresh)
	r.GET("/plans", h.ListPlans)

	authed := r.Group("/", middleware.RequireAuth(authSvc, testCookie))
	authed.GET("/me", h.Me)
	authed.PUT("/me/profile", h.UpdateProfile)
	authed.GET("/subscription", h.CurrentSubscription)
	authed.POST("/chats", h.CreateChat)
	authed.GET("/chats", h.ListChats)
	authed.PUT("/chats/:id/title", h.UpdateChatTitle)
	authed.GET("/chats/:id/messages", h.ListMessages)
	authed.POST("/chats/:id/messages",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil),
		h.PostMessage)
	authed.GET("/session", h.GetSession)
	authed.POST("/session/conversations", h.StartConversation)
	authed.PUT("/session/conversation/:id", h.SelectConversation)
	authed.POST("/session/messages", h.SubmitMessage)
	authed.GET("/session/events", h.SessionEvents)

	return &testEnv{
		db: db, auth: authSvc, chats: chats, msgs: msgs, plans: plans,
		reg: reg, replier: rep, h: h, r: r,
	}
}

// signUp registers email and returns its token and user ID.
func (e *testEnv) signUp(t *testing.T, email string) (token, userID string) {
	t.Helper()
	s, err := e.auth.SignUp(context.Background(), auth.SignUpInput{
		Email:    email,
		Password: "Segredo123",
		FullName: "Ana Souza",
	})
	if err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	return s.Token, s.User.ID
}

type reqOpt func(*http.Request)

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, status, w.Body.String())
	}
	if code == "" {
		return
	}
	if got := decodeBody[ErrorResponse](t, w); got.Code != code {
		t.Fatalf("code = %q; want %q", got.Code, code)
	}
}
