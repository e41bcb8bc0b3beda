package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuery signals an empty or non-textual search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrHospitalNotFound signals a missing hospital record.
	ErrHospitalNotFound = errors.New("hospital not found")
	// ErrDoctorNotFound signals a missing doctor record.
	ErrDoctorNotFound = errors.New("doctor not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals rate or credit exhaustion at a provider.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrRunInProgress signals an overlapping indexing run.
	ErrRunInProgress = errors.New("indexing run already in progress")
)

// ProviderError attributes an upstream failure to a named embedding provider.
// It unwraps to ErrEmbeddingQuotaExceeded when Quota is set and to
// ErrEmbeddingProvider otherwise, so transport mapping stays sentinel-based.
type ProviderError struct {
	Provider string
	Quota    bool
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	if e.Quota {
		return ErrEmbeddingQuotaExceeded
	}
	return ErrEmbeddingProvider
}

// NewProviderError wraps an upstream error with provider attribution.
func NewProviderError(provider string, quota bool, err error) error {
	return &ProviderError{Provider: provider, Quota: quota, Err: err}
}
