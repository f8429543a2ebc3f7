// Package apperr defines the error kinds surfaced by bank sync operations.
//
// Every failure is an *Error carrying a Kind. Validation and permission
// failures are produced locally and never reach the network; busy, timeout,
// network and server failures are surfaced as-is and never retried here.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error. Kinds are strings so they log and serialize cleanly.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindPermissionRequired Kind = "PERMISSION_REQUIRED"
	KindBusy               Kind = "BUSY"
	KindTimeout            Kind = "TIMEOUT"
	KindNetwork            Kind = "NETWORK_ERROR"
	KindServer             Kind = "SERVER_ERROR"
	KindCanceled           Kind = "CANCELED"
	KindUnknown            Kind = "UNKNOWN"
)

// MessageKey returns the translation key presentation uses for k.
func (k Kind) MessageKey() string {
	switch k {
	case KindValidation:
		return "error.validation"
	case KindPermissionRequired:
		return "error.permission_required"
	case KindBusy:
		return "error.busy"
	case KindTimeout:
		return "error.timeout"
	case KindNetwork:
		return "error.network"
	case KindServer:
		return "error.server"
	case KindCanceled:
		return "error.canceled"
	default:
		return "error.unknown"
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "sync" or "toggle"
	Field   string // offending input field for validation failures
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A target with a
// Message only matches errors carrying that same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Kind sentinels for errors.Is.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrPermissionRequired = &Error{Kind: KindPermissionRequired}
	ErrBusy               = &Error{Kind: KindBusy}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrServer             = &Error{Kind: KindServer}
	ErrCanceled           = &Error{Kind: KindCanceled}

	ErrEmptySelection   = &Error{Kind: KindValidation, Message: "no transactions selected"}
	ErrAlreadyCommitted = &Error{Kind: KindValidation, Message: "preview session already closed"}
)

// New returns an error of kind with a fixed message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Validation returns a KindValidation error for field.
func Validation(op, field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Server returns a KindServer error with the server's message.
func Server(op, message string) *Error {
	return &Error{Kind: KindServer, Op: op, Message: message}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithOp returns a copy of a sentinel bound to op.
func WithOp(sentinel *Error, op string) *Error {
	e := *sentinel
	e.Op = op
	return &e
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
