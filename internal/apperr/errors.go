// Package apperr provides the coded error type shared by the game services.
package apperr

import "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the class of the error code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying lookup context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NotFound builds a not-found error for the named entity.
func NotFound(entity, id string) *Error {
	return WithMetadata(CodeNotFound, entity+" "+id+" not found", map[string]string{"entity": entity, "id": id})
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound    = New(CodeNotFound, "not found")
	ErrMemberDead  = New(CodeMemberDead, "member is dead")
	ErrMemberAlive = New(CodeMemberAlive, "member is alive")
	ErrBossDead    = New(CodeBossDead, "boss is dead")
	ErrNoNextPhase = New(CodeNoNextPhase, "no next phase")
)

// KindOf returns the kind of the first coded error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsPermission(err error) bool { return KindOf(err) == KindPermission }
