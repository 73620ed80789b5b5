package errs

import "errors"

// Kind classifies an error for callers. The zero Kind means "not a client-actionable
// error" (storage outage, misconfiguration, bug).
type Kind string

const (
	KindInvalidCredentials    Kind = "InvalidCredentials"
	KindDuplicateIdentity     Kind = "DuplicateIdentity"
	KindSessionNotFound       Kind = "SessionNotFound"
	KindInvalidToken          Kind = "InvalidToken"
	KindReuseDetected         Kind = "ReuseDetected"
	KindTokenExpired          Kind = "TokenExpired"
	KindCodeExpiredOrNotFound Kind = "CodeExpiredOrNotFound"
	KindCodeMismatch          Kind = "CodeMismatch"
	KindRateLimited           Kind = "RateLimited"
	KindInvalidArgument       Kind = "InvalidArgument"
)

// Error is a (kind, message) pair surfaced to callers.
type Error struct {
	Kind    Kind
	Message string
}

// New returns an *Error with the given kind and message.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is reports kind equality so that errors.Is(err, ErrTokenExpired) holds for any
// *Error of the same kind, regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind carried by err, or "" if err is nil or not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the client message carried by err, or "" when err has no kind.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
