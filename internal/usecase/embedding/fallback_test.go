package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

func vec(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i) * 0.1
	}
	return v
}

func TestEmbed_PrimarySucceeds(t *testing.T) {
	primary := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: vec(4), Provider: "gemini", Dimensions: 4,
	}}
	fallback := &mockEmbedder{}
	fe := NewFallbackEmbedder(primary, "gemini", fallback, "openai", 4, zap.NewNop())

	result, err := fe.Embed(context.Background(), "cardiac care")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provider != "gemini" {
		t.Fatalf("expected primary provider, got %q", result.Provider)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback must not be called when primary succeeds, got %d calls", fallback.calls)
	}
}

func TestEmbed_FallsBackOnPrimaryFailure(t *testing.T) {
	primary := &mockEmbedder{err: domain.NewProviderError("gemini", false, errors.New("503"))}
	fallback := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: vec(4), Provider: "openai", Dimensions: 4,
	}}
	fe := NewFallbackEmbedder(primary, "gemini", fallback, "openai", 4, zap.NewNop())

	result, err := fe.Embed(context.Background(), "cardiac care")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provider != "openai" {
		t.Fatalf("expected fallback provider, got %q", result.Provider)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected one call each, got primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestEmbed_QuotaCascade(t *testing.T) {
	primary := &mockEmbedder{err: domain.NewProviderError("gemini", true, errors.New("429"))}
	fallback := &mockEmbedder{err: domain.NewProviderError("openai", true, errors.New("quota"))}
	fe := NewFallbackEmbedder(primary, "gemini", fallback, "openai", 4, zap.NewNop())

	_, err := fe.Embed(context.Background(), "cardiac care")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota sentinel when all providers exhausted, got %v", err)
	}
}

func TestEmbed_QuotaOnlyPrimary(t *testing.T) {
	primary := &mockEmbedder{err: domain.NewProviderError("gemini", true, errors.New("429"))}
	fallback := &mockEmbedder{err: domain.NewProviderError("openai", false, errors.New("503"))}
	fe := NewFallbackEmbedder(primary, "gemini", fallback, "openai", 4, zap.NewNop())

	_, err := fe.Embed(context.Background(), "cardiac care")
	if err == nil {
		t.Fatal("expected error")
	}
	// A transient fallback failure must not surface as quota exhaustion.
	if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected provider error, got quota sentinel: %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected provider sentinel, got %v", err)
	}
}

func TestEmbed_NoFallback(t *testing.T) {
	primary := &mockEmbedder{err: domain.NewProviderError("gemini", false, errors.New("down"))}
	fe := NewFallbackEmbedder(primary, "gemini", nil, "", 4, zap.NewNop())

	_, err := fe.Embed(context.Background(), "cardiac care")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected provider sentinel, got %v", err)
	}
}

func TestEmbed_CanceledContextSkipsFallback(t *testing.T) {
	primary := &mockEmbedder{err: context.Canceled}
	fallback := &mockEmbedder{result: domain.EmbeddingResult{Embedding: vec(4)}}
	fe := NewFallbackEmbedder(primary, "gemini", fallback, "openai", 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fe.Embed(ctx, "cardiac care")
	if err == nil {
		t.Fatal("expected error on canceled context")
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback must not run on canceled context, got %d calls", fallback.calls)
	}
}

func TestEmbed_CoercesDimensions(t *testing.T) {
	primary := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: vec(6), Provider: "gemini", Dimensions: 6,
	}}
	fe := NewFallbackEmbedder(primary, "gemini", nil, "", 4, zap.NewNop())

	result, err := fe.Embed(context.Background(), "cardiac care")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 4 || result.Dimensions != 4 {
		t.Fatalf("expected 4-dim vector, got len=%d dims=%d", len(result.Embedding), result.Dimensions)
	}
}

func TestBatchEmbed_PartialFailure(t *testing.T) {
	// Second text fails with a transient provider error.
	calls := 0
	primary := embedFunc(func(_ context.Context, _ string) (domain.EmbeddingResult, error) {
		calls++
		if calls == 2 {
			return domain.EmbeddingResult{}, domain.NewProviderError("gemini", false, errors.New("503"))
		}
		return domain.EmbeddingResult{Embedding: vec(4), Provider: "gemini", Dimensions: 4}, nil
	})
	fe := NewFallbackEmbedder(primary, "gemini", nil, "", 4, zap.NewNop())

	res, err := fe.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Vectors[0] == nil || res.Vectors[2] == nil {
		t.Fatal("expected vectors at positions 0 and 2")
	}
	if res.Vectors[1] != nil {
		t.Fatal("expected nil vector at failed position 1")
	}
	if len(res.Errors) != 1 || res.Errors[0].Index != 1 {
		t.Fatalf("expected one error at index 1, got %+v", res.Errors)
	}
}

func TestBatchEmbed_QuotaStopsBatch(t *testing.T) {
	calls := 0
	primary := embedFunc(func(_ context.Context, _ string) (domain.EmbeddingResult, error) {
		calls++
		if calls >= 2 {
			return domain.EmbeddingResult{}, domain.NewProviderError("gemini", true, errors.New("quota"))
		}
		return domain.EmbeddingResult{Embedding: vec(4), Dimensions: 4}, nil
	})
	fe := NewFallbackEmbedder(primary, "gemini", nil, "", 4, zap.NewNop())

	res, err := fe.BatchEmbed(context.Background(), []string{"a", "b", "c", "d"})
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota sentinel, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected batch to stop after quota failure, got %d calls", calls)
	}
	if res.Vectors[0] == nil {
		t.Fatal("expected vector for the text embedded before quota ran out")
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	fe := NewFallbackEmbedder(&mockEmbedder{}, "gemini", nil, "", 4, zap.NewNop())

	res, err := fe.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Vectors != nil || res.Errors != nil {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

// embedFunc adapts a function to domain.Embedder for tests.
type embedFunc func(ctx context.Context, text string) (domain.EmbeddingResult, error)

func (f embedFunc) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return f(ctx, text)
}
