// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints. Every failure goes out as an ErrorResponse with a stable code;
// writeError is the single place where domain errors become HTTP statuses.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "chat not found"
//	}
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tributaria/internal/auth"
	"github.com/tbourn/tributaria/internal/http/middleware"
	"github.com/tbourn/tributaria/internal/reply"
	"github.com/tbourn/tributaria/internal/services"
	"github.com/tbourn/tributaria/internal/session"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by the router for 404/405.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// writeError maps a domain error onto the envelope. The raw error is logged
// for 5xx responses only; clients get a fixed message.
func writeError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, status, code, msg)
}

func classify(err error) (status int, code, msg string) {
	var replyErr *reply.Error

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeInvalidCredentials, err.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired session"
	case errors.Is(err, auth.ErrDuplicate):
		return http.StatusConflict, ErrCodeDuplicate, err.Error()
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidPhone),
		errors.Is(err, auth.ErrInvalidName):
		return http.StatusBadRequest, ErrCodeValidation, err.Error()
	case errors.Is(err, auth.ErrProfileNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "profile not found"
	case errors.Is(err, auth.ErrTransport):
		return http.StatusServiceUnavailable, ErrCodeUnavailable, "authentication service unavailable"

	case errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidRole):
		return http.StatusBadRequest, ErrCodeBadRequest, err.Error()

	case errors.Is(err, session.ErrEmptyInput):
		return http.StatusBadRequest, ErrCodeBadRequest, "message is empty"
	case errors.Is(err, session.ErrNoConversation):
		return http.StatusConflict, ErrCodeNoConversation, "no conversation selected"
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, ErrCodeBusy, "a reply is still pending"
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, ErrCodeSessionClosed, "session closed"

	case errors.As(err, &replyErr):
		return http.StatusBadGateway, ErrCodeReplyFailed, fmt.Sprintf("assistant %s", replyErr.Kind)
	}

	if kind, ok := services.IsStoreError(err); ok {
		switch kind {
		case services.ErrNotFound:
			return http.StatusNotFound, ErrCodeNotFound, "chat not found"
		case services.ErrPermission:
			return http.StatusForbidden, ErrCodeForbidden, "chat belongs to another user"
		default:
			return http.StatusServiceUnavailable, ErrCodeUnavailable, "chat store unavailable"
		}
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
