// Package search implements hybrid hospital search: semantic KNN over
// stored embeddings blended with lexical matching, with a lexical-only
// degraded mode when the query cannot be embedded.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
	"github.com/careatlas/caresearch/internal/domain/specialty"
	"github.com/careatlas/caresearch/internal/metrics"
	"github.com/careatlas/caresearch/internal/repository/hospital"
)

// overscan fetches more candidates than the requested limit so the
// substring post-filters and the similarity threshold don't starve the
// final page.
const overscan = 2

// Service handles hybrid hospital search.
type Service struct {
	repo     Repository
	embed    Embedder
	defaults domain.SearchOptions
	logger   *zap.Logger
}

// New creates a search service with the given default options.
func New(repo Repository, embed Embedder, defaults domain.SearchOptions, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, defaults: defaults, logger: logger}
}

// Search runs a hybrid search for the query under the given filters and
// options. An embedding failure degrades the search to lexical-only
// rather than failing it; database errors still fail.
func (s *Service) Search(
	ctx context.Context, query string, filters domain.SearchFilters, opts domain.SearchOptions,
) ([]domain.SearchResult, domain.SearchMetadata, error) {
	q, err := domain.ValidateQuery(query)
	if err != nil {
		return nil, domain.SearchMetadata{}, err
	}

	merged, err := opts.Merge(s.defaults)
	if err != nil {
		return nil, domain.SearchMetadata{}, err
	}

	start := time.Now()

	results, hasSemantic, err := s.run(ctx, q, filters, merged)

	metrics.SearchRequestDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("hybrid", "error").Inc()
		return nil, domain.SearchMetadata{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues("hybrid", "success").Inc()

	meta := domain.SearchMetadata{
		Query:             q,
		TotalResults:      len(results),
		HasSemanticSearch: hasSemantic,
		Options:           merged,
		Filters:           filters,
		Timestamp:         time.Now().UTC(),
	}
	return results, meta, nil
}

func (s *Service) run(
	ctx context.Context, q string, filters domain.SearchFilters, opts domain.SearchOptions,
) ([]domain.SearchResult, bool, error) {
	fetchK := opts.Limit * overscan
	if fetchK > domain.MaxLimit {
		fetchK = domain.MaxLimit
	}

	var knn []hospital.Scored
	hasSemantic := false

	if emb, err := s.embed.Embed(ctx, q); err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("embed query: %w", err)
		}
		metrics.SearchDegradedTotal.Inc()
		s.logger.Warn("Query embedding failed, degrading to lexical search",
			zap.String("query", q),
			zap.Error(err),
		)
	} else {
		knn, err = s.repo.SearchKNN(ctx, emb.Embedding, filters, fetchK)
		if err != nil {
			return nil, false, fmt.Errorf("semantic search: %w", err)
		}
		hasSemantic = true
	}

	lexical, err := s.searchLexical(ctx, q, filters, fetchK)
	if err != nil {
		return nil, false, fmt.Errorf("lexical search: %w", err)
	}

	results := s.blend(knn, lexical, opts, hasSemantic)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, hasSemantic, nil
}

// searchLexical matches the raw query tokens first; when nothing matches,
// it retries with medical specialties inferred from the query so that
// colloquial phrasings ("heart problems") still reach clinical wording.
func (s *Service) searchLexical(
	ctx context.Context, q string, filters domain.SearchFilters, topK int,
) ([]hospital.Scored, error) {
	rows, err := s.repo.SearchLexical(ctx, strings.Fields(q), filters, topK)
	if err != nil || len(rows) > 0 {
		return rows, err
	}

	inferred := specialty.Infer(q)
	if len(inferred) == 0 {
		return nil, nil
	}
	return s.repo.SearchLexical(ctx, inferred, filters, topK)
}

// blend merges semantic and lexical rows by hospital, scores them, and
// orders by combined score with rating as the tie-break. Rows below the
// similarity threshold survive only when they have lexical support.
func (s *Service) blend(
	knn, lexical []hospital.Scored, opts domain.SearchOptions, hasSemantic bool,
) []domain.SearchResult {
	merged := make(map[string]*domain.SearchResult, len(knn)+len(lexical))
	order := make([]string, 0, len(knn)+len(lexical))

	for _, row := range knn {
		merged[row.Hospital.ID] = &domain.SearchResult{
			Hospital:        row.Hospital,
			SimilarityScore: row.Similarity,
		}
		order = append(order, row.Hospital.ID)
	}
	for _, row := range lexical {
		if existing, ok := merged[row.Hospital.ID]; ok {
			existing.TextScore = row.TextRank
			continue
		}
		merged[row.Hospital.ID] = &domain.SearchResult{
			Hospital:  row.Hospital,
			TextScore: row.TextRank,
		}
		order = append(order, row.Hospital.ID)
	}

	results := make([]domain.SearchResult, 0, len(merged))
	for _, id := range order {
		r := merged[id]
		if hasSemantic && r.SimilarityScore < opts.SimilarityThreshold && r.TextScore == 0 {
			continue
		}
		r.CombinedScore = opts.SemanticWeight*r.SimilarityScore + opts.TextWeight*r.TextScore
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].Hospital.Rating > results[j].Hospital.Rating
	})
	return results
}
