package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoResults indicates that every adapter returned zero records.
	ErrNoResults = errors.New("no results")

	// ErrDeadlineExceeded indicates the overall time budget elapsed before
	// any adapter completed.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceDisabled indicates a fetch against a disabled source adapter.
	ErrSourceDisabled = errors.New("source disabled")

	// ErrRateLimited indicates that a provider rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external provider is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ProviderError wraps any failure of a single source adapter: network
// failure, malformed payload, auth failure, or rate-limit exhaustion.
// It never propagates past the fan-out coordinator; it is recorded in
// diagnostics as a zero-contribution source.
type ProviderError struct {
	Source SourceType
	Cause  error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError wraps err as a ProviderError for the given source.
func NewProviderError(source SourceType, err error) *ProviderError {
	return &ProviderError{Source: source, Cause: err}
}

// ExternalAPIError provides details about an external provider API error.
type ExternalAPIError struct {
	Source     SourceType
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source SourceType, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// RateLimitError provides details about a provider rate limit response.
type RateLimitError struct {
	Source     SourceType
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source SourceType, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Source: source, RetryAfter: retryAfter}
}
