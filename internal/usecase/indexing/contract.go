package indexing

import (
	"context"
	"time"

	"github.com/careatlas/caresearch/internal/domain"
)

// CandidateSelector picks hospitals that need an embedding pass.
type CandidateSelector interface {
	SelectForIndexing(ctx context.Context, force bool) ([]domain.HospitalRecord, error)
}

// HospitalReader fetches hospitals by ID for targeted re-indexing.
type HospitalReader interface {
	GetMulti(ctx context.Context, ids []string) ([]domain.HospitalRecord, error)
}

// VectorWriter persists embedding vectors and clears them on reset.
type VectorWriter interface {
	UpdateVector(ctx context.Context, id string, vector []float32, provider string) error
	ResetEmbeddings(ctx context.Context) error
}

// CoverageReader reports index coverage counters.
type CoverageReader interface {
	CountActive(ctx context.Context) (int, error)
	CountEmbedded(ctx context.Context) (int, error)
	LastEmbeddedAt(ctx context.Context) (time.Time, error)
}

// BatchEmbedder vectorizes a batch of texts with per-position errors.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchResult, error)
}
