package chat

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing the engine boundary.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindNetwork    ErrorKind = "NetworkError"
	KindValidation ErrorKind = "ValidationError"
	KindAuth       ErrorKind = "AuthError"
	KindServer     ErrorKind = "ServerError"
)

var (
	ErrEmptyMessage       = errors.New("message has neither content nor attachment")
	ErrContentAndUpload   = errors.New("message carries both content and an attachment")
	ErrAttachmentTooLarge = errors.New("attachment exceeds 10 MiB")
	ErrInvalidAttachment  = errors.New("invalid attachment")
	ErrInFlight           = errors.New("message delivery already in flight")
	ErrUnknownMessage     = errors.New("unknown message")
	ErrNotRetryable       = errors.New("message is not in a retryable state")
)

// Error is a classified failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err. Unclassified errors count as network errors,
// which covers timeouts and canceled requests.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrContentAndUpload) ||
		errors.Is(err, ErrAttachmentTooLarge) ||
		errors.Is(err, ErrInvalidAttachment) {
		return KindValidation
	}
	return KindNetwork
}

// Retryable reports whether retrying without user change can succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer:
		return true
	}
	return false
}
