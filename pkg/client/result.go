package client

import (
	"errors"
	"fmt"
)

// Generic messages used when the backend gives nothing better.
const (
	MsgNetwork       = "Network error occurred"
	MsgUploadNetwork = "Network error occurred during upload"
	MsgGeneric       = "An error occurred"
	MsgUploadFailed  = "Upload failed"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindNetwork: no response was obtained.
	KindNetwork Kind = iota + 1
	// KindStatus: non-2xx response with a structured error body.
	KindStatus
	// KindUnparseable: non-2xx response whose body carried no usable message.
	KindUnparseable
	// KindValidation: rejected before any call was made.
	KindValidation
	// KindDecode: 2xx response that did not match the expected record.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindUnparseable:
		return "unparseable"
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error shape returned by every client operation.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response was obtained
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsStatus reports whether err is a backend response with the given status.
func IsStatus(err error, status int) bool {
	e, ok := AsError(err)
	return ok && e.Status == status
}

// IsNetwork reports whether err means the backend could not be reached.
func IsNetwork(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindNetwork
}

// Result holds either Data or Err, never both.
type Result[T any] struct {
	Data T
	Err  *Error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unwrap converts the result to the usual (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil {
		var zero T
		return zero, r.Err
	}
	return r.Data, nil
}

// Message returns the error message, or "" on success.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message
}

func ok[T any](v T) Result[T] {
	return Result[T]{Data: v}
}

func fail[T any](err *Error) Result[T] {
	return Result[T]{Err: err}
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
