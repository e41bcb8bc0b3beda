// Package embedding layers provider selection on top of the raw
// embedding transports: a primary provider with an optional fallback,
// and dimension coercion so the index always sees vectors of one size.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
	"github.com/careatlas/caresearch/internal/metrics"
)

// FallbackEmbedder tries the primary provider and falls back to the
// secondary one when the primary fails. Vectors from either provider are
// coerced to the configured dimensionality before they leave this layer.
type FallbackEmbedder struct {
	primary      domain.Embedder
	primaryName  string
	fallback     domain.Embedder
	fallbackName string
	dimensions   int
	logger       *zap.Logger
}

// NewFallbackEmbedder wires the provider chain. fallback may be nil.
func NewFallbackEmbedder(
	primary domain.Embedder, primaryName string,
	fallback domain.Embedder, fallbackName string,
	dimensions int, logger *zap.Logger,
) *FallbackEmbedder {
	return &FallbackEmbedder{
		primary:      primary,
		primaryName:  primaryName,
		fallback:     fallback,
		fallbackName: fallbackName,
		dimensions:   dimensions,
		logger:       logger,
	}
}

// Embed implements domain.Embedder.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, primaryErr := f.primary.Embed(ctx, text)
	if primaryErr == nil {
		return f.fit(result), nil
	}

	if f.fallback == nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed via %s: %w", f.primaryName, primaryErr)
	}

	// Context cancellation is the caller's decision, not a provider
	// fault. Do not burn fallback quota on it.
	if ctx.Err() != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed via %s: %w", f.primaryName, primaryErr)
	}

	f.logger.Warn("Primary embedding provider failed, trying fallback",
		zap.String("primary", f.primaryName),
		zap.String("fallback", f.fallbackName),
		zap.Bool("quota", errors.Is(primaryErr, domain.ErrEmbeddingQuotaExceeded)),
		zap.Error(primaryErr),
	)

	result, fallbackErr := f.fallback.Embed(ctx, text)
	if fallbackErr != nil {
		// Report quota exhaustion only when every provider in the
		// chain is out of quota.
		if errors.Is(primaryErr, domain.ErrEmbeddingQuotaExceeded) &&
			errors.Is(fallbackErr, domain.ErrEmbeddingQuotaExceeded) {
			return domain.EmbeddingResult{}, fmt.Errorf(
				"all providers out of quota (%s, %s): %w", f.primaryName, f.fallbackName, fallbackErr)
		}
		return domain.EmbeddingResult{}, fmt.Errorf(
			"embed via %s after %s failed: %w", f.fallbackName, f.primaryName, fallbackErr)
	}

	metrics.EmbeddingFallbacksTotal.WithLabelValues(f.primaryName, f.fallbackName).Inc()

	f.logger.Debug("Fallback embedding succeeded",
		zap.String("provider", f.fallbackName),
		zap.Duration("duration", time.Since(start)),
	)

	return f.fit(result), nil
}

// HealthCheck reports healthy when any provider in the chain answers.
func (f *FallbackEmbedder) HealthCheck(ctx context.Context) error {
	primary, ok := f.primary.(domain.HealthChecker)
	if !ok {
		return nil
	}

	primaryErr := primary.HealthCheck(ctx)
	if primaryErr == nil {
		return nil
	}

	if fallback, ok := f.fallback.(domain.HealthChecker); ok {
		if fallback.HealthCheck(ctx) == nil {
			return nil
		}
	}

	return fmt.Errorf("embedding providers unavailable: %w", primaryErr)
}

// BatchEmbed embeds each text through the provider chain, collecting
// per-position failures instead of aborting the whole batch. The
// returned vectors are positionally aligned with the input.
func (f *FallbackEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchResult, error) {
	if len(texts) == 0 {
		return domain.BatchResult{}, nil
	}

	result := domain.BatchResult{
		Vectors: make([]*domain.EmbeddingResult, len(texts)),
	}

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("batch embed canceled at %d/%d: %w", i, len(texts), err)
		}

		res, err := f.Embed(ctx, text)
		if err != nil {
			// Quota exhaustion across the whole chain will not recover
			// mid-batch. Stop instead of failing every remaining text.
			if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
				return result, fmt.Errorf("batch embed stopped at %d/%d: %w", i, len(texts), err)
			}
			result.Errors = append(result.Errors, domain.BatchError{Index: i, Err: err})
			continue
		}
		result.Vectors[i] = &res
	}

	return result, nil
}

func (f *FallbackEmbedder) fit(result domain.EmbeddingResult) domain.EmbeddingResult {
	if f.dimensions > 0 && len(result.Embedding) != f.dimensions {
		result.Embedding = domain.FitDimensions(result.Embedding, f.dimensions)
		result.Dimensions = f.dimensions
	}
	return result
}
