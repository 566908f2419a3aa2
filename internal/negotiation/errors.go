package negotiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shehzadigill/gymcoachai-sub008/internal/generation"
)

// Kind classifies engine failures for callers and the HTTP layer.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindState       Kind = "state"
	KindConcurrency Kind = "concurrency"
	KindNetwork     Kind = "network"
	KindService     Kind = "service"
	KindInternal    Kind = "internal"
)

// Error is returned by every Engine operation that fails.
// A failed operation never leaves a partial write behind.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether resubmitting the same request may succeed.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(conversationID string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("conversation %s not found", conversationID)}
}

func stateError(format string, args ...any) *Error {
	return &Error{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

func concurrencyError(message string, err error) *Error {
	return &Error{Kind: KindConcurrency, Message: message, Retryable: true, Err: err}
}

func networkError(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Retryable: true, Err: err}
}

func serviceError(message string, err error) *Error {
	return &Error{Kind: KindService, Message: message, Retryable: true, Err: err}
}

// gatewayError maps a generation failure onto the engine taxonomy.
func gatewayError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, generation.ErrUnavailable):
		return networkError("plan generator unavailable, please try again", err)
	default:
		return serviceError("plan generator failed, please try again", err)
	}
}

// persistenceError maps a plan-save failure onto the engine taxonomy.
func persistenceError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return networkError("saving the plan timed out, please try again", err)
	}
	return serviceError("saving the plan failed, please try again", err)
}
