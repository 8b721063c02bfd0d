// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them. Generic
// codes mirror HTTP status semantics; domain codes cover outcomes the status
// alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_credentials",
//	  "message": "invalid email or password"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"

	// Auth:
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeDuplicate          = "duplicate"
	ErrCodeValidation         = "validation_failed"

	// Session:
	ErrCodeNoConversation = "no_conversation"
	ErrCodeBusy           = "busy"
	ErrCodeSessionClosed  = "session_closed"

	// Reply:
	ErrCodeReplyFailed = "reply_failed"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)
