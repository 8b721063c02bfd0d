// Session HTTP handlers.
//
// These endpoints drive the live chat session of the caller:
//   - GET  /session                    (snapshot)
//   - POST /session/conversations      (start a new conversation)
//   - PUT  /session/conversation/{id}  (open an existing conversation)
//   - POST /session/messages           (submit; 202 while the reply is pending)
//   - GET  /session/events             (server-sent snapshots)
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/tributaria/internal/http/middleware"
	"github.com/tbourn/tributaria/internal/session"
)

// Stream tuning. The server write timeout caps a stream when the deadline
// cannot be lifted, so StreamMaxAge stays below it; EventSource reconnects.
var (
	StreamKeepAlive = 15 * time.Second
	StreamMaxAge    = 40 * time.Second
)

// StartConversationRequest optionally names the new conversation.
type StartConversationRequest struct {
	Title string `json:"title" example:"Dúvidas sobre CBS"`
}

// SubmitRequest carries the user's message.
type SubmitRequest struct {
	Content string `json:"content" binding:"required" example:"O que é IBS?"`
}

// GetSession godoc
// @ID          getSession
// @Summary     Session snapshot
// @Tags        Session
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  session.Snapshot
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	ok(c, http.StatusOK, h.sessions.Get(middleware.UserID(c)).Snapshot())
}

// StartConversation godoc
// @ID          startConversation
// @Summary     Start a new conversation
// @Description Creates a conversation and makes it current with an empty transcript.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.StartConversationRequest  false  "Optional title"
// @Success     201  {object}  session.Snapshot
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /session/conversations [post]
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	s := h.sessions.Get(middleware.UserID(c))
	if _, err := s.StartNewConversation(c.Request.Context(), req.Title); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, s.Snapshot())
}

// SelectConversation godoc
// @ID          selectConversation
// @Summary     Open a conversation
// @Description Loads the transcript of a conversation owned by the caller. On failure the previous conversation stays open.
// @Tags        Session
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
// @Success     200  {object}  session.Snapshot
// @Failure     403  {object}  handlers.ErrorResponse  "Chat belongs to another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /session/conversation/{id} [put]
func (h *Handlers) SelectConversation(c *gin.Context) {
	chatID, valid := validChatID(c)
	if !valid {
		return
	}
	s := h.sessions.Get(middleware.UserID(c))
	if err := s.SelectConversation(c.Request.Context(), chatID); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, s.Snapshot())
}

// SubmitMessage godoc
// @ID          submitMessage
// @Summary     Send a message in the current conversation
// @Description Returns 202 with the AwaitingReply snapshot. With wait=true the response is held until the turn resolves and returns 200.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       wait  query  bool  false  "Block until the reply is resolved"
// @Param       body  body   handlers.SubmitRequest  true  "Message"
// @Success     202  {object}  session.Snapshot
// @Success     200  {object}  session.Snapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Empty message"
// @Failure     409  {object}  handlers.ErrorResponse  "No conversation or reply pending"
// @Router      /session/messages [post]
func (h *Handlers) SubmitMessage(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	s := h.sessions.Get(middleware.UserID(c))
	done, err := s.Submit(c.Request.Context(), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		select {
		case <-done:
			ok(c, http.StatusOK, s.Snapshot())
			return
		case <-c.Request.Context().Done():
		}
	}
	ok(c, http.StatusAccepted, s.Snapshot())
}

// SessionEvents godoc
// @ID          sessionEvents
// @Summary     Stream session snapshots
// @Description Server-sent events; each "snapshot" event carries the full session snapshot, id is its version.
// @Tags        Session
// @Produce     text/event-stream
// @Security    BearerAuth
// @Success     200  {object}  session.Snapshot
// @Router      /session/events [get]
func (h *Handlers) SessionEvents(c *gin.Context) {
	s := h.sessions.Get(middleware.UserID(c))
	updates, cancel := s.Subscribe()
	defer cancel()

	maxAge := StreamMaxAge
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err == nil {
		maxAge = 0
	}

	ctx := c.Request.Context()
	if maxAge > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, maxAge)
		defer stop()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	send := func(snap session.Snapshot) {
		c.Render(-1, sse.Event{
			Event: "snapshot",
			Id:    strconv.FormatUint(snap.Version, 10),
			Data:  snap,
		})
		c.Writer.Flush()
	}
	send(s.Snapshot())

	tick := time.NewTicker(StreamKeepAlive)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-updates:
			if !open {
				return
			}
			send(snap)
		case <-tick.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		}
	}
}
