// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat resources:
//   - POST   /chats               (create)
//   - GET    /chats               (list, paginated, ETag support)
//   - PUT    /chats/{id}/title    (rename)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
// Every route here runs behind RequireAuth; the owner is always the
// authenticated user.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/auth"
	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/http/middleware"
	"github.com/tbourn/tributaria/internal/repo"
	"github.com/tbourn/tributaria/internal/services"
	"github.com/tbourn/tributaria/internal/session"
	"github.com/tbourn/tributaria/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService defines chat lifecycle operations consumed by HTTP handlers.
type ChatService interface {
	Create(ctx context.Context, userID, title string) (*domain.Chat, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
}

// MessageService defines transcript operations.
type MessageService interface {
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
	Get(ctx context.Context, userID, messageID string) (*domain.Message, error)
	Append(ctx context.Context, userID, chatID, role, text string) (*domain.Message, error)
}

// AuthService defines account and session-token operations.
type AuthService interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (*auth.Session, error)
	CurrentProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, up auth.ProfileUpdate) (*domain.Profile, error)
}

// PlanService exposes subscription plans.
type PlanService interface {
	Plans(ctx context.Context) []domain.SubscriptionPlan
	Current(ctx context.Context, userID string) (*domain.Subscription, error)
}

// Sessions hands out the live chat session of a user.
type Sessions interface {
	Get(userID string) *session.Session
}

//
// Handler wiring
//

// CookieOptions controls the session cookie written on sign-in.
type CookieOptions struct {
	Name   string
	Path   string
	Secure bool
}

// Deps bundles what Handlers needs.
type Deps struct {
	Chats    ChatService
	Messages MessageService
	Auth     AuthService
	Plans    PlanService
	Sessions Sessions
	Cookie   CookieOptions
	// DB enables ETag pre-checks and idempotency records. Optional.
	DB *gorm.DB
	// IdempotencyTTL is how long an append can be replayed by key.
	IdempotencyTTL time.Duration
}

// Handlers groups the HTTP endpoints of the API.
type Handlers struct {
	chatSvc  ChatService
	msgSvc   MessageService
	authSvc  AuthService
	planSvc  PlanService
	sessions Sessions
	cookie   CookieOptions
	db       *gorm.DB
	idemTTL  time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	if d.Cookie.Path == "" {
		d.Cookie.Path = "/"
	}
	db := d.DB
	if db == nil {
		if svc, ok := d.Chats.(*services.ChatService); ok {
			db = svc.DB
		}
	}
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &Handlers{
		chatSvc:  d.Chats,
		msgSvc:   d.Messages,
		authSvc:  d.Auth,
		planSvc:  d.Plans,
		sessions: d.Sessions,
		cookie:   d.Cookie,
		db:       db,
		idemTTL:  d.IdempotencyTTL,
	}
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// Title optionally sets the chat title; a timestamped placeholder is used when empty.
	Title string `json:"title" example:"Dúvidas sobre IBS"`
}

// UpdateChatTitleRequest is the JSON payload for updating a chat title.
type UpdateChatTitleRequest struct {
	// Title is the new chat name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Reforma tributária e MEI"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
	return p.Number, p.Size
}

func paginate(page, pageSize int, total int64) Pagination {
	p := utils.Page{Number: page, Size: pageSize}
	totalPages := p.TotalPages(total)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// notModified sets a weak ETag and reports whether If-None-Match matches it.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func validChatID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// CreateChat godoc
// @ID          createChat
// @Summary     Create a new chat
// @Description Creates a chat for the current user and returns the chat resource.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateChatRequest  false  "Create chat payload"
//
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	ch, err := h.chatSvc.Create(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(req.Title))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats (paginated)
// @Description Returns a page of the user's chats, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListChatsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		if count, maxTS, err := repo.ChatsStats(ctx, h.db, uid); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			if notModified(c, fmt.Sprintf(`W/"chats:%s:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)) {
				return
			}
		}
	}

	items, total, err := h.chatSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: paginate(page, pageSize, total)})
}

// UpdateChatTitle godoc
// @ID          updateChatTitle
// @Summary     Rename a chat
// @Description Updates the title of a chat owned by the current user.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateChatTitleRequest  true  "New title"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Chat belongs to another user"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/title [put]
func (h *Handlers) UpdateChatTitle(c *gin.Context) {
	chatID, valid := validChatID(c)
	if !valid {
		return
	}

	var req UpdateChatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	if err := h.chatSvc.UpdateTitle(c.Request.Context(), middleware.UserID(c), chatID, req.Title); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
