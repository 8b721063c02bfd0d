// Package auth implements account registration, credential checks, and
// session tokens. It owns the identity of the current user: every other
// package receives a user ID that was resolved here.
//
// Session tokens are HS256 JWTs carrying the user ID and a random token ID
// (jti). Signing out records the jti in the revoked_tokens table so the
// token is rejected for the rest of its lifetime.
package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when email and password do not match.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrDuplicate is returned when signing up with an email already in use.
	ErrDuplicate = errors.New("email already registered")

	// ErrTransport wraps any storage failure.
	ErrTransport = errors.New("auth store unavailable")

	// ErrInvalidToken is returned for malformed, expired, or revoked tokens.
	ErrInvalidToken = errors.New("invalid or expired session")

	// ErrProfileNotFound is returned when the user has no profile row.
	ErrProfileNotFound = errors.New("profile not found")
)

// Validation errors.
var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password must have at least 8 characters and at most 72 bytes, with upper-case, lower-case and a digit")
	ErrInvalidPhone = errors.New("invalid Brazilian phone number")
	ErrInvalidName  = errors.New("full name must have at least 3 characters")
)
