package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/timmy/talentscore/internal/domain"
)

// Error is a classified model call failure.
type Error struct {
	Kind       domain.ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another call could succeed. Credentials do not
// fix themselves, everything else may be transient.
func (e *Error) Retryable() bool {
	return e.Kind != domain.ErrorKindAuth
}

// KindOf extracts the error kind, defaulting to provider_error.
func KindOf(err error) domain.ErrorKind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorKindTimeout
	}
	return domain.ErrorKindProvider
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable()
	}
	return err != nil
}

// kindForStatus maps an HTTP status to an error kind.
func kindForStatus(code int) domain.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrorKindAuth
	case code == http.StatusTooManyRequests:
		return domain.ErrorKindRateLimited
	case code == http.StatusRequestTimeout:
		return domain.ErrorKindTimeout
	default:
		return domain.ErrorKindProvider
	}
}

func statusError(code int, message string) *Error {
	return &Error{Kind: kindForStatus(code), StatusCode: code, Message: message}
}

// transportError classifies failures that never produced an HTTP response.
func transportError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: domain.ErrorKindTimeout, Message: "model call exceeded deadline", Err: err}
	}
	return &Error{Kind: domain.ErrorKindProvider, Message: err.Error(), Err: err}
}

func missingKeyError(provider string) *Error {
	return &Error{Kind: domain.ErrorKindAuth, Message: provider + " api key is not configured"}
}

func malformed(format string, args ...interface{}) *Error {
	return &Error{Kind: domain.ErrorKindMalformedResponse, Message: fmt.Sprintf(format, args...)}
}
