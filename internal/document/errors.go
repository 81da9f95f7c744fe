package document

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for registry calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the registry took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the registry returned an unusable record
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorOutage indicates the registry is unreachable or the circuit is open
	ErrorOutage ErrorCategory = "outage"

	// ErrorInternal indicates an unexpected failure
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps registry failures with a normalized category. An
// unknown card is never a ProviderError.
type ProviderError struct {
	Category   ErrorCategory
	Registry   string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("registry %s [%s]: %s: %v", e.Registry, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("registry %s [%s]: %s", e.Registry, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a categorized registry error.
func NewProviderError(category ErrorCategory, registry, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		Registry:   registry,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorOutage,
	}
}

// IsRetryable reports whether a later attempt at the same lookup may succeed.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the category, defaulting to ErrorInternal.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}
