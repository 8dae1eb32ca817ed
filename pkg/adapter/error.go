package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// BackendError wraps provider errors with status metadata so the
// routing engine can classify them.
type BackendError struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *BackendError) Error() string {
	if e == nil {
		return "backend error"
	}
	if e.Err != nil {
		if e.Provider != "" {
			return fmt.Sprintf("%s: %v", e.Provider, e.Err)
		}
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: backend error (status=%d)", e.Provider, e.Status)
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an invocation error is safe to fall back
// from: rate limits, server errors, and transport timeouts qualify; a
// caller cancellation never does.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		if backendErr.Temporary {
			return true
		}
		if backendErr.Status == 429 || (backendErr.Status >= 500 && backendErr.Status <= 599) {
			return true
		}
	}
	return false
}
