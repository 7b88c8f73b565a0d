package ai

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures so callers can pick a message or offer
// a retry.
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindRateLimited         Kind = "rate_limited"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindTimeout             Kind = "timeout"
	KindProvider            Kind = "provider"
	KindUnavailable         Kind = "unavailable"
	KindMalformed           Kind = "malformed"
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ai: %s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("ai: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnavailable is returned when the project has no usable provider.
var ErrUnavailable = &Error{Kind: KindUnavailable, Message: "AI assistance is not configured; set an API key in settings"}

// KindOf extracts the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTimeout reports whether err is a provider timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

func statusError(status int, body string) *Error {
	e := &Error{Status: status, Message: body}
	switch status {
	case 401:
		e.Kind, e.Message = KindUnauthorized, "API key invalid or expired"
	case 402:
		e.Kind, e.Message = KindInsufficientBalance, "insufficient provider balance"
	case 429:
		e.Kind, e.Message = KindRateLimited, "too many requests; wait and retry"
	default:
		e.Kind = KindProvider
		if e.Message == "" {
			e.Message = "provider error"
		}
	}
	return e
}
