// Package errs contains sentinel errors and client-facing error kinds used across
// layers for stable error mapping.
package errs

import "errors"

// Repository-level sentinels. They never reach clients directly; services translate
// them into kinds or wrap them as infrastructure failures.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a failed conditional update (the stored state
	// changed between read and write).
	ErrVersionConflict = errors.New("version conflict")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)

// Client-facing kinds. Each sentinel carries the default message for its kind;
// use New to attach a more specific message while keeping errors.Is matching.
var (
	ErrInvalidCredentials    = New(KindInvalidCredentials, "invalid credentials")
	ErrDuplicateIdentity     = New(KindDuplicateIdentity, "identity already registered")
	ErrSessionNotFound       = New(KindSessionNotFound, "session not found")
	ErrInvalidToken          = New(KindInvalidToken, "invalid token")
	ErrReuseDetected         = New(KindReuseDetected, "refresh token reuse detected, please login again")
	ErrTokenExpired          = New(KindTokenExpired, "refresh token expired, please login again")
	ErrCodeExpiredOrNotFound = New(KindCodeExpiredOrNotFound, "code expired or not found")
	ErrCodeMismatch          = New(KindCodeMismatch, "code does not match")
	ErrRateLimited           = New(KindRateLimited, "too many attempts")
	ErrInvalidArgument       = New(KindInvalidArgument, "invalid argument")
)
