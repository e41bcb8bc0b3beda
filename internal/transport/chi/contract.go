package chi

import (
	"context"

	"github.com/careatlas/caresearch/internal/domain"
	domidx "github.com/careatlas/caresearch/internal/domain/indexing"
	combineduc "github.com/careatlas/caresearch/internal/usecase/combined"
	healthuc "github.com/careatlas/caresearch/internal/usecase/health"
	indexinguc "github.com/careatlas/caresearch/internal/usecase/indexing"
)

// HospitalSearcher runs hybrid hospital searches.
type HospitalSearcher interface {
	Search(ctx context.Context, query string, filters domain.SearchFilters, opts domain.SearchOptions) ([]domain.SearchResult, domain.SearchMetadata, error)
}

// CombinedSearcher runs cross-entity searches.
type CombinedSearcher interface {
	Search(ctx context.Context, query, location string, limits combineduc.Limits) (*combineduc.Result, error)
}

// IndexingService manages embedding index runs.
type IndexingService interface {
	Run(ctx context.Context, opts indexinguc.RunOptions) (*domidx.Progress, error)
	Reindex(ctx context.Context, ids []string) (*domidx.Progress, error)
	Reset(ctx context.Context) error
	Status(ctx context.Context) (indexinguc.Status, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
