package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Adapters wrap them with fmt.Errorf("...: %w") so callers can classify
// failures with errors.Is regardless of which backend produced them.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates invalid configuration such as bad chunking
	// parameters. It is fatal and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidArgument indicates bad call parameters, e.g. k < 1.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDimensionMismatch indicates vectors of different sizes were mixed.
	// Ingestion must halt rather than pad or truncate.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmbeddingService indicates the embedding service failed after retries.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrCompletionService indicates the completion service failed after retries.
	ErrCompletionService = errors.New("completion service error")

	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the completion service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrMessagingService indicates a reply could not be delivered to the
	// messaging platform.
	ErrMessagingService = errors.New("messaging service error")

	// ErrStoreClosed indicates the vector store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// ConfigError describes a single invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// DimensionMismatchError reports a vector whose length differs from the
// dimension a store or client was configured with.
type DimensionMismatchError struct {
	// Expected is the configured dimension.
	Expected int

	// Got is the length of the offending vector.
	Got int

	// Subject names what carried the vector, e.g. "product 42".
	Subject string
}

func (e *DimensionMismatchError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
	}
	return fmt.Sprintf("dimension mismatch for %s: expected %d, got %d", e.Subject, e.Expected, e.Got)
}

// Unwrap allows errors.Is(err, ErrDimensionMismatch).
func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

// CheckDimensions returns a *DimensionMismatchError when len(vec) != want.
func CheckDimensions(vec []float32, want int, subject string) error {
	if len(vec) != want {
		return &DimensionMismatchError{Expected: want, Got: len(vec), Subject: subject}
	}
	return nil
}

// IsTransient reports whether err is an external-service failure that a
// later attempt might not repeat.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingService) ||
		errors.Is(err, ErrCompletionService) ||
		errors.Is(err, ErrTimeout)
}
