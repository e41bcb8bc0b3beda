// Package caresearch is the embeddable client for the hospital search
// engine: the same hybrid search, indexing, and combined search services
// the HTTP server exposes, wired for in-process use.
package caresearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/db"
	dbRedis "github.com/careatlas/caresearch/internal/db/redis"
	"github.com/careatlas/caresearch/internal/domain"
	domidx "github.com/careatlas/caresearch/internal/domain/indexing"
	doctorrepo "github.com/careatlas/caresearch/internal/repository/doctor"
	hospitalrepo "github.com/careatlas/caresearch/internal/repository/hospital"
	combineduc "github.com/careatlas/caresearch/internal/usecase/combined"
	indexinguc "github.com/careatlas/caresearch/internal/usecase/indexing"
	searchuc "github.com/careatlas/caresearch/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the caresearch entry point for embedding the engine in a
// Go program instead of running the HTTP server.
type Client struct {
	store       db.Store
	hospitals   *hospitalrepo.Repo
	doctors     *doctorrepo.Repo
	searchSvc   *searchuc.Service
	combinedSvc *combineduc.Service
	indexingSvc *indexinguc.Service
}

// New creates a Client, connects to the database, and ensures the
// search indexes exist.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		searchDefaults: domain.DefaultSearchOptions(),
		logger:         zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("caresearch: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("caresearch: create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("caresearch: database not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	hospRepo := hospitalrepo.New(store)
	docRepo := doctorrepo.New(store)

	if err := hospRepo.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("caresearch: hospital index: %w", err)
	}
	if err := docRepo.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("caresearch: doctor index: %w", err)
	}

	// Without an embedder, hybrid search degrades to lexical on every
	// query and indexing runs fail fast.
	var domEmb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		domEmb = &embedderAdapter{inner: cfg.embedder}
	}

	searchSvc := searchuc.New(hospRepo, domEmb, cfg.searchDefaults, cfg.logger)
	combinedSvc := combineduc.New(hospRepo, docRepo, cfg.logger)
	indexingSvc := indexinguc.New(
		hospRepo, hospRepo, hospRepo, hospRepo,
		&batchAdapter{inner: domEmb}, cfg.logger,
	)
	if cfg.batchSize > 0 {
		indexingSvc = indexingSvc.WithBatching(cfg.batchSize, cfg.batchDelay)
	}

	return &Client{
		store:       store,
		hospitals:   hospRepo,
		doctors:     docRepo,
		searchSvc:   searchSvc,
		combinedSvc: combinedSvc,
		indexingSvc: indexingSvc,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// SaveHospital writes or updates a hospital record.
func (c *Client) SaveHospital(ctx context.Context, h *Hospital) error {
	return c.hospitals.Save(ctx, h)
}

// GetHospital fetches a hospital by ID.
func (c *Client) GetHospital(ctx context.Context, id string) (Hospital, error) {
	return c.hospitals.Get(ctx, id)
}

// SaveDoctor writes or updates a doctor record.
func (c *Client) SaveDoctor(ctx context.Context, d *Doctor) error {
	return c.doctors.Save(ctx, d)
}

// GetDoctor fetches a doctor by ID.
func (c *Client) GetDoctor(ctx context.Context, id string) (Doctor, error) {
	return c.doctors.Get(ctx, id)
}

// Search starts a fluent hospital search for the given query.
func (c *Client) Search(query string) *SearchBuilder {
	return &SearchBuilder{client: c, query: query}
}

// SearchAll runs a combined hospital and doctor search. location, when
// non-empty, narrows hospitals by city substring.
func (c *Client) SearchAll(ctx context.Context, query, location string) (*CombinedResult, error) {
	return c.combinedSvc.Search(ctx, query, location, combineduc.Limits{})
}

// IndexHospitals embeds every hospital that needs a vector. With force,
// all active hospitals are re-embedded.
func (c *Client) IndexHospitals(ctx context.Context, force bool) (*domidx.Progress, error) {
	return c.indexingSvc.Run(ctx, indexinguc.RunOptions{Force: force})
}

// IndexingStatus reports embedding coverage over the catalog.
func (c *Client) IndexingStatus(ctx context.Context) (indexinguc.Status, error) {
	return c.indexingSvc.Status(ctx)
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:   r.Embedding,
		Provider:    r.Provider,
		Dimensions:  len(r.Embedding),
		TotalTokens: r.TotalTokens,
	}, nil
}

// batchAdapter gives the indexing service a batch interface over a
// single-text embedder.
type batchAdapter struct {
	inner domain.Embedder
}

func (a *batchAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchResult, error) {
	result := domain.BatchResult{Vectors: make([]*domain.EmbeddingResult, len(texts))}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		r, err := a.inner.Embed(ctx, text)
		if err != nil {
			result.Errors = append(result.Errors, domain.BatchError{Index: i, Err: err})
			continue
		}
		result.Vectors[i] = &r
	}
	return result, nil
}

// noopEmbedder fails every call (used when no embedder is configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"caresearch: embedder not configured (use WithEmbedder)",
	)
}
