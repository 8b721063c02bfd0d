// Message HTTP handlers.
//
// This file exposes REST endpoints for chat transcripts:
//   - POST /chats/{id}/messages   (append one message)
//   - GET  /chats/{id}/messages   (list paginated messages for a chat)
//
// Appends are pure: the assistant turn is driven by the session endpoints,
// not here. If the client supplies an Idempotency-Key and a previous append
// with the same key exists for (user, chat), the recorded message is
// returned with `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/http/middleware"
	"github.com/tbourn/tributaria/internal/render"
	"github.com/tbourn/tributaria/internal/repo"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	defaultPageSize       = 20
	maxPageSize           = 100
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for appending a message.
type PostMessageRequest struct {
	// Role is "user" (default) or "assistant".
	Role string `json:"role" example:"user"`
	// Content is the message text. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"O que muda para o MEI com a reforma tributária?"`
}

// PostMessageResponse is the JSON envelope for a stored message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// MessageView is a message plus its rendered HTML, returned for ?format=html.
type MessageView struct {
	domain.Message
	HTML string `json:"html"`
}

// ListMessagesResponse contains a page of chat messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   any        `json:"messages" swaggertype:"array,object"`
	Pagination Pagination `json:"pagination"`
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Append a message
// @Description Appends one message to the end of a chat transcript.
// @Description Supports idempotency via the Idempotency-Key header (same key → same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.PostMessageResponse  "Stored message"
// @Success     200  {object}  handlers.PostMessageResponse  "Replayed message"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse        "Chat belongs to another user"
// @Failure     404  {object}  handlers.ErrorResponse        "Chat not found"
// @Failure     503  {object}  handlers.ErrorResponse        "Store unavailable"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, valid := validChatID(c)
	if !valid {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	uid := middleware.UserID(c)

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, uid, chatID, idemKey, time.Now().UTC()); err == nil {
			if prev, err := h.msgSvc.Get(ctx, uid, rec.MessageID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, PostMessageResponse{Message: prev})
				return
			}
		}
	}

	m, err := h.msgSvc.Append(ctx, uid, chatID, role, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	if idemKey != "" && h.db != nil {
		if _, err := repo.CreateIdempotency(ctx, h.db, uid, chatID, idemKey, m.ID, http.StatusCreated, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record failed")
		}
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a chat
// @Description Returns a page of the transcript, oldest first. With format=html every message carries sanitized HTML.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id             path    string  true  "Chat ID (UUID)"  format(uuid)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       format         query   string  false "Set to html to include rendered HTML"  Enums(html)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Chat belongs to another user"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, valid := validChatID(c)
	if !valid {
		return
	}
	uid := middleware.UserID(c)
	page, pageSize := clampPagination(c)
	asHTML := c.Query("format") == "html"

	// Owner check precedes the ETag.
	if _, err := h.chatSvc.Get(ctx, uid, chatID); err != nil {
		writeError(c, err)
		return
	}

	if h.db != nil {
		if count, maxTS, err := repo.MessagesStats(ctx, h.db, chatID); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d:%t"`, chatID, count, ts, page, pageSize, asHTML)
			if notModified(c, etag) {
				return
			}
		}
	}

	items, total, err := h.msgSvc.ListPage(ctx, uid, chatID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := ListMessagesResponse{Messages: items, Pagination: paginate(page, pageSize, total)}
	if asHTML {
		views := make([]MessageView, len(items))
		for i, m := range items {
			views[i] = MessageView{Message: m, HTML: renderMessage(m)}
		}
		resp.Messages = views
	}
	ok(c, http.StatusOK, resp)
}

// renderMessage treats assistant text as Markdown and user text as plain.
func renderMessage(m domain.Message) string {
	if m.Role == domain.RoleAssistant {
		return render.HTML(m.Content)
	}
	return render.Text(m.Content)
}
