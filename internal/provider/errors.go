package provider

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a provider failure.
type Kind int

// The set of failure kinds is closed; retry policy switches over it exhaustively.
const (
	KindUnknown Kind = iota
	KindRateLimited
	KindTimeout
	KindInvalidResponse
	KindUnauthorized
	KindCancelled
)

// String returns the wire/log name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindInvalidResponse:
		return "invalid_response"
	case KindUnauthorized:
		return "unauthorized"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Transient reports whether a failure of this kind may succeed on a later attempt.
func (k Kind) Transient() bool {
	switch k {
	case KindRateLimited, KindTimeout:
		return true
	case KindUnknown, KindInvalidResponse, KindUnauthorized, KindCancelled:
		return false
	}
	return false
}

// Error is the failure type returned by every Gateway implementation.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := "provider " + e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err.
// Errors that are not provider errors report KindUnknown.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

func newError(kind Kind, status int, message string, err error) *Error {
	return &Error{Kind: kind, StatusCode: status, Message: message, Err: err}
}
