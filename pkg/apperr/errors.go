package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindUnauthenticated      Kind = "UNAUTHENTICATED"
	KindNoActiveOrganization Kind = "NO_ACTIVE_ORGANIZATION"
	KindForbidden            Kind = "FORBIDDEN"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindExhausted            Kind = "EXHAUSTED"
	KindGone                 Kind = "GONE"
	KindInvalidTransition    Kind = "INVALID_TRANSITION"
	KindTooManyRequests      Kind = "TOO_MANY_REQUESTS"
	KindInvalidInput         Kind = "INVALID_INPUT"
	KindReadOnly             Kind = "PREVIEW_READ_ONLY"
	KindUnavailable          Kind = "UNAVAILABLE"
	KindInternal             Kind = "INTERNAL"
)

// HTTPStatus returns the status code a response for this kind carries.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNoActiveOrganization, KindForbidden, KindReadOnly:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExhausted, KindGone:
		return http.StatusGone
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error returned across service boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Allowed lists the permitted target states of an InvalidTransition.
	Allowed []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(strings.ToLower(string(e.Kind)))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Bare sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated}
	ErrNoActiveOrganization = &Error{Kind: KindNoActiveOrganization}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrExhausted            = &Error{Kind: KindExhausted}
	ErrGone                 = &Error{Kind: KindGone}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition}
	ErrTooManyRequests      = &Error{Kind: KindTooManyRequests}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrUnavailable          = &Error{Kind: KindUnavailable}
	ErrInternal             = &Error{Kind: KindInternal}
)

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and operation to an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FromStore classifies an unexpected storage error. Context cancellation and
// deadlines become Unavailable, typed errors pass through, everything else is Internal.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindUnavailable, op, err)
	}
	return Wrap(KindInternal, op, err)
}

// KindOf reports the kind of any error. Untyped errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnavailable
	}
	return KindInternal
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// PublicMessage returns the message safe to show a client. Internal and
// Unavailable errors never leak their cause; an Internal error shows only a
// Message set where it was created.
func PublicMessage(err error) string {
	ae, ok := As(err)
	if !ok {
		return "Internal server error"
	}
	switch ae.Kind {
	case KindInternal:
		if ae.Message != "" {
			return ae.Message
		}
		return "Internal server error"
	case KindUnavailable:
		return "Service temporarily unavailable"
	}
	if ae.Message != "" {
		return ae.Message
	}
	return http.StatusText(ae.Kind.HTTPStatus())
}
