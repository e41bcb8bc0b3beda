package search

import (
	"context"

	"github.com/careatlas/caresearch/internal/domain"
	"github.com/careatlas/caresearch/internal/repository/hospital"
)

// Repository defines the storage contract for hybrid hospital search.
type Repository interface {
	SearchKNN(
		ctx context.Context, vector []float32,
		filters domain.SearchFilters, k int,
	) ([]hospital.Scored, error)

	SearchLexical(
		ctx context.Context, terms []string,
		filters domain.SearchFilters, topK int,
	) ([]hospital.Scored, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
