package domain

import (
	"fmt"
	"strings"
	"time"
)

// Search option defaults and bounds.
const (
	DefaultSemanticWeight      = 0.7
	DefaultTextWeight          = 0.3
	DefaultSimilarityThreshold = 0.6
	DefaultLimit               = 50
	MaxLimit                   = 200
)

// SearchFilters is a set of optional structured constraints. Absent filter
// means no constraint; all present filters AND together.
type SearchFilters struct {
	City              string       // case-insensitive substring
	State             string       // case-insensitive substring
	Type              HospitalType // exact
	TraumaLevel       string       // exact
	EmergencyServices *bool
	Verified          *bool // defaults to true when nil
}

// WantVerified resolves the verification filter, which defaults to true
// unless explicitly overridden.
func (f SearchFilters) WantVerified() bool {
	if f.Verified == nil {
		return true
	}
	return *f.Verified
}

// SearchOptions are the tunable ranking weights. Weights need not sum to 1
// but should, for score interpretability.
type SearchOptions struct {
	SemanticWeight      float64
	TextWeight          float64
	SimilarityThreshold float64
	Limit               int
}

// DefaultSearchOptions returns the design-default option set.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		SemanticWeight:      DefaultSemanticWeight,
		TextWeight:          DefaultTextWeight,
		SimilarityThreshold: DefaultSimilarityThreshold,
		Limit:               DefaultLimit,
	}
}

// Merge overlays explicitly-set values from o onto the defaults and
// enforces the limit bound.
func (o SearchOptions) Merge(defaults SearchOptions) (SearchOptions, error) {
	out := defaults
	if o.SemanticWeight > 0 {
		out.SemanticWeight = o.SemanticWeight
	}
	if o.TextWeight > 0 {
		out.TextWeight = o.TextWeight
	}
	if o.SimilarityThreshold > 0 {
		out.SimilarityThreshold = o.SimilarityThreshold
	}
	if o.Limit != 0 {
		if o.Limit < 0 {
			return SearchOptions{}, fmt.Errorf("limit must be positive: %w", ErrInvalidInput)
		}
		out.Limit = o.Limit
	}
	if out.Limit > MaxLimit {
		out.Limit = MaxLimit
	}
	return out, nil
}

// SearchResult is a hospital projection plus its three per-query scores.
// Computed per request, never persisted.
type SearchResult struct {
	Hospital        HospitalRecord
	SimilarityScore float64 // semantic, 0..1, 0 in degraded mode
	TextScore       float64 // lexical, 0..1
	CombinedScore   float64 // ranking key
}

// SearchMetadata echoes the request and records how the search executed.
type SearchMetadata struct {
	Query             string
	TotalResults      int
	HasSemanticSearch bool
	Options           SearchOptions
	Filters           SearchFilters
	Timestamp         time.Time
}

// ValidateQuery rejects empty and whitespace-only queries before any
// provider or database call is attempted.
func ValidateQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("query must be a non-empty string: %w", ErrInvalidQuery)
	}
	return q, nil
}
