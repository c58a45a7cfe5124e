package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for boundary translation. Handlers map kinds to
// HTTP statuses; everything else is Internal and never leaks details.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	Unauthenticated
	Forbidden
	NotFound
	Conflict
	RateLimited
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Msg: msg, Err: err} }

// KindOf extracts the Kind from err, defaulting to Internal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case InvalidInput:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-safe message for err. Internal errors collapse to
// a generic message so storage details never reach the wire.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	return "internal server error"
}
