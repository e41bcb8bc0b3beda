package domain

import (
	"errors"
	"math"
	"testing"
)

func TestFitDimensions(t *testing.T) {
	v := []float32{1, 2, 3, 4}

	if got := FitDimensions(v, 4); len(got) != 4 {
		t.Errorf("exact fit changed length: %d", len(got))
	}
	if got := FitDimensions(v, 2); len(got) != 2 || got[1] != 2 {
		t.Errorf("truncate = %v", got)
	}
	got := FitDimensions(v, 6)
	if len(got) != 6 || got[3] != 4 || got[4] != 0 || got[5] != 0 {
		t.Errorf("pad = %v", got)
	}
	if got := FitDimensions(v, 0); len(got) != 4 {
		t.Errorf("zero dims must be a no-op, got %v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if sim := CosineSimilarity(a, b); math.Abs(sim-1) > 1e-9 {
		t.Errorf("identical vectors: sim = %v", sim)
	}

	c := []float32{0, 1, 0}
	if sim := CosineSimilarity(a, c); sim != 0 {
		t.Errorf("orthogonal vectors: sim = %v", sim)
	}

	// Opposed vectors clamp to 0 rather than going negative.
	d := []float32{-1, 0, 0}
	if sim := CosineSimilarity(a, d); sim != 0 {
		t.Errorf("opposed vectors: sim = %v", sim)
	}

	if sim := CosineSimilarity(a, []float32{1, 2}); sim != 0 {
		t.Errorf("length mismatch: sim = %v", sim)
	}
	if sim := CosineSimilarity([]float32{0, 0}, []float32{0, 0}); sim != 0 {
		t.Errorf("zero vectors: sim = %v", sim)
	}
}

func TestBatchResultVector(t *testing.T) {
	r := BatchResult{Vectors: []*EmbeddingResult{{Provider: "a"}, nil}}
	if r.Vector(0) == nil || r.Vector(0).Provider != "a" {
		t.Error("in-range vector missing")
	}
	if r.Vector(1) != nil {
		t.Error("failed position must be nil")
	}
	if r.Vector(-1) != nil || r.Vector(2) != nil {
		t.Error("out-of-range must be nil")
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	quota := NewProviderError("openai", true, errors.New("429"))
	if !errors.Is(quota, ErrEmbeddingQuotaExceeded) {
		t.Error("quota error must unwrap to ErrEmbeddingQuotaExceeded")
	}
	transient := NewProviderError("openai", false, errors.New("503"))
	if !errors.Is(transient, ErrEmbeddingProvider) {
		t.Error("transient error must unwrap to ErrEmbeddingProvider")
	}
	if errors.Is(transient, ErrEmbeddingQuotaExceeded) {
		t.Error("transient error must not look like quota exhaustion")
	}
}
