// Package common defines shared sentinel errors used across the layers of
// AuthKeeper. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors.
	ErrorValidation         = errors.New("validation error")
	ErrorLoginAlreadyExists = errors.New("login already exists")

	// WebAuthn ceremony errors. A ceremony consists of a start call that
	// issues a challenge and a finish call that consumes it; these cover
	// every way the finish half can go wrong.
	ErrChallengeNotFound    = errors.New("ceremony challenge not found")
	ErrSerialization        = errors.New("options serialization failed")
	ErrRegistrationFailed   = errors.New("registration failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrAmbiguousCredential  = errors.New("ambiguous credential")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
