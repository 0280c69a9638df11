package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrProvider matches any *ProviderError via errors.Is.
	ErrProvider = errors.New("embedding provider error")
	// ErrTimeout is returned when a provider call exceeds its deadline.
	ErrTimeout = errors.New("embedding provider timeout")
)

// ProviderError describes a failed call to an embedding provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Reason     string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	parts := []string{"provider=" + e.Provider}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	parts = append(parts, e.Reason)
	if e.Cause != nil {
		parts = append(parts, "cause="+e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrProvider) true for every ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// NewProviderError returns a ProviderError with the given reason.
func NewProviderError(provider, reason string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: reason, Cause: cause}
}

// statusError builds a ProviderError from a non-2xx HTTP status.
// 408, 429 and 5xx are retryable; other client errors (auth, bad request) are not.
func statusError(provider string, status int, body string) *ProviderError {
	reason := http.StatusText(status)
	if body != "" {
		reason += ": " + body
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Reason:     reason,
		Retryable:  status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500,
	}
}

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// classifyContextErr maps a context deadline into ErrTimeout and leaves other errors as they are.
func classifyContextErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
