// Package services defines the business logic for conversations, messages,
// and subscriptions. This file centralizes the service-level error values so
// that they can be consistently returned by service methods and checked by
// callers with errors.Is / errors.As.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/tributaria/internal/repo"
)

// Store failure kinds. Every failure of the chat store is a *StoreError
// whose Kind is one of these.
var (
	// ErrNotFound indicates that the conversation or message does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermission indicates the conversation exists but belongs to another user.
	ErrPermission = errors.New("permission denied")

	// ErrTransport indicates the database could not be reached or rejected the query.
	ErrTransport = errors.New("store unavailable")
)

// Input validation errors. These are returned as-is, never wrapped in a
// *StoreError, and no store call is made.
var (
	// ErrEmptyPrompt is returned when a message text is empty after normalization.
	ErrEmptyPrompt = errors.New("message is empty")

	// ErrTooLong is returned when a user message exceeds the configured rune limit.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidRole is returned for roles other than "user" and "assistant".
	ErrInvalidRole = errors.New("role must be user or assistant")
)

// ErrChatNotFound is kept as an alias so callers can match on the
// conversation-specific name.
var ErrChatNotFound = ErrNotFound

// StoreError describes a failed chat store operation.
type StoreError struct {
	Kind error  // ErrNotFound, ErrPermission or ErrTransport
	Op   string // e.g. "list_messages"
	Err  error  // underlying cause, may be nil
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// storeErr classifies a repository error for op. Not-found errors from GORM
// map to ErrNotFound; anything else is a transport failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, repo.ErrNotFound) {
		return &StoreError{Kind: ErrNotFound, Op: op}
	}
	return &StoreError{Kind: ErrTransport, Op: op, Err: err}
}

// IsStoreError reports whether err is a store failure and returns its kind.
func IsStoreError(err error) (kind error, ok bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return nil, false
}
