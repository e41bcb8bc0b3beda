package domain

import (
	"context"
	"math"
)

// KeyPrefix namespaces all database keys written by this service.
const KeyPrefix = "caresearch:"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the vector and its provenance through the
// adapter chain.
type EmbeddingResult struct {
	Embedding    []float32
	Provider     string
	Dimensions   int
	PromptTokens int
	TotalTokens  int
}

// BatchError attributes a failure to the input position it occurred at.
type BatchError struct {
	Index int
	Err   error
}

// BatchResult is the positionally-aligned outcome of a batch embed call:
// Vectors has the same length as the input, with nil exactly at the
// positions listed in Errors. Callers can say "item i failed" without
// losing track of which items succeeded.
type BatchResult struct {
	Vectors []*EmbeddingResult
	Errors  []BatchError
}

// Vector returns the result at position i, or nil when the position
// failed or was never reached.
func (r BatchResult) Vector(i int) *EmbeddingResult {
	if i < 0 || i >= len(r.Vectors) {
		return nil
	}
	return r.Vectors[i]
}

// FitDimensions coerces a vector to the given dimensionality: longer
// native outputs are truncated, shorter ones zero-padded. This keeps every
// stored vector comparable regardless of which provider produced it.
func FitDimensions(v []float32, dims int) []float32 {
	if dims <= 0 || len(v) == dims {
		return v
	}
	if len(v) > dims {
		return v[:dims]
	}
	out := make([]float32, dims)
	copy(out, v)
	return out
}

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped so callers always see a [0,1] score for ranking.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
