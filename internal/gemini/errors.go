package gemini

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindBlocked
	KindMalformed
	KindGeoBlocked
	KindUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindBlocked:
		return "blocked"
	case KindMalformed:
		return "malformed"
	case KindGeoBlocked:
		return "geo_blocked"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the only error type Rewrite returns. Message is meant for the chat.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func newError(kind Kind, status int, msg string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gemini %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("gemini %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or 0 when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// UserMessage returns text suitable for the chat for any error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return msgInternal
}
