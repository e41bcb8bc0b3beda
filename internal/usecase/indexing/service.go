// Package indexing drives batch embedding generation for the hospital
// index: selecting candidates, embedding them in rate-limited batches,
// and reporting coverage.
package indexing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
	domidx "github.com/careatlas/caresearch/internal/domain/indexing"
	"github.com/careatlas/caresearch/internal/metrics"
)

// Defaults for batch pacing. The delay keeps embedding providers from
// rate-limiting long runs.
const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 500 * time.Millisecond
)

// RunOptions tunes a single indexing run. Zero values fall back to the
// service's configured pacing.
type RunOptions struct {
	Force      bool
	BatchSize  int
	BatchDelay time.Duration
}

// Status is the coverage report for the hospital index.
type Status struct {
	TotalActive       int              `json:"totalActive"`
	WithEmbeddings    int              `json:"withEmbeddings"`
	WithoutEmbeddings int              `json:"withoutEmbeddings"`
	Coverage          float64          `json:"coverage"`
	LastIndexedAt     *time.Time       `json:"lastIndexedAt,omitempty"`
	Running           bool             `json:"running"`
	LastRun           *domidx.Progress `json:"lastRun,omitempty"`
}

// Service runs indexing passes over the hospital catalog. Only one run
// may be active at a time.
type Service struct {
	selector   CandidateSelector
	reader     HospitalReader
	writer     VectorWriter
	coverage   CoverageReader
	embedder   BatchEmbedder
	batchSize  int
	batchDelay time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	lastRun *domidx.Progress
}

// New creates an indexing service with default batch pacing.
func New(
	selector CandidateSelector, reader HospitalReader,
	writer VectorWriter, coverage CoverageReader,
	embedder BatchEmbedder, logger *zap.Logger,
) *Service {
	return &Service{
		selector:   selector,
		reader:     reader,
		writer:     writer,
		coverage:   coverage,
		embedder:   embedder,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
		logger:     logger,
	}
}

// WithBatching overrides batch size and inter-batch delay.
func (s *Service) WithBatching(size int, delay time.Duration) *Service {
	if size > 0 {
		s.batchSize = size
	}
	if delay >= 0 {
		s.batchDelay = delay
	}
	return s
}

// Run embeds every active hospital that is missing an embedding or whose
// record changed since it was last embedded. Force re-embeds everything.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*domidx.Progress, error) {
	if !s.acquire() {
		metrics.IndexingRunsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrRunInProgress
	}
	defer s.release()

	candidates, err := s.selector.SelectForIndexing(ctx, opts.Force)
	if err != nil {
		metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("select candidates: %w", err)
	}

	size := s.batchSize
	if opts.BatchSize > 0 {
		size = opts.BatchSize
	}
	delay := s.batchDelay
	if opts.BatchDelay > 0 {
		delay = opts.BatchDelay
	}
	progress, err := s.process(ctx, candidates, size, delay)
	s.finish(ctx, progress)
	return progress, err
}

// Reindex re-embeds the named hospitals regardless of staleness.
// Unknown IDs are reported as failures rather than aborting the run.
func (s *Service) Reindex(ctx context.Context, ids []string) (*domidx.Progress, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no hospital ids given: %w", domain.ErrInvalidInput)
	}
	if !s.acquire() {
		metrics.IndexingRunsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrRunInProgress
	}
	defer s.release()

	hospitals, err := s.reader.GetMulti(ctx, ids)
	if err != nil {
		metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("load hospitals: %w", err)
	}

	found := make(map[string]struct{}, len(hospitals))
	for _, h := range hospitals {
		found[h.ID] = struct{}{}
	}

	progress, err := s.process(ctx, hospitals, s.batchSize, s.batchDelay)
	if progress != nil {
		// Recorded before finish freezes the report.
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				progress.Total++
				progress.RecordFailure(id, "", domain.ErrHospitalNotFound)
			}
		}
	}
	s.finish(ctx, progress)
	return progress, err
}

// Reset clears every stored embedding so the next run starts from scratch.
func (s *Service) Reset(ctx context.Context) error {
	if !s.acquire() {
		return domain.ErrRunInProgress
	}
	defer s.release()

	if err := s.writer.ResetEmbeddings(ctx); err != nil {
		return fmt.Errorf("reset embeddings: %w", err)
	}
	metrics.IndexingCoverage.Set(0)
	s.logger.Info("Embeddings reset")
	return nil
}

// Status reports index coverage and the last run outcome.
func (s *Service) Status(ctx context.Context) (Status, error) {
	total, err := s.coverage.CountActive(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count active: %w", err)
	}
	embedded, err := s.coverage.CountEmbedded(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count embedded: %w", err)
	}

	st := Status{
		TotalActive:       total,
		WithEmbeddings:    embedded,
		WithoutEmbeddings: total - embedded,
	}
	if total > 0 {
		st.Coverage = float64(embedded) / float64(total)
	}
	metrics.IndexingCoverage.Set(st.Coverage)

	if last, err := s.coverage.LastEmbeddedAt(ctx); err == nil && !last.IsZero() {
		st.LastIndexedAt = &last
	}

	s.mu.Lock()
	st.Running = s.running
	st.LastRun = s.lastRun
	s.mu.Unlock()

	return st, nil
}

// process embeds the given hospitals batch by batch. Per-hospital
// failures are recorded and the run continues; quota exhaustion and
// cancellation stop the run with the progress so far.
func (s *Service) process(
	ctx context.Context, hospitals []domain.HospitalRecord, batchSize int, delay time.Duration,
) (*domidx.Progress, error) {
	progress := domidx.NewProgress(len(hospitals))

	if len(hospitals) == 0 {
		s.logger.Info("Indexing run found no candidates")
		metrics.IndexingRunsTotal.WithLabelValues("completed").Inc()
		return progress, nil
	}

	s.logger.Info("Indexing run started",
		zap.Int("candidates", len(hospitals)),
		zap.Int("batch_size", batchSize),
	)

	for offset := 0; offset < len(hospitals); offset += batchSize {
		if offset > 0 {
			if err := s.pause(ctx, delay); err != nil {
				metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
				return progress, fmt.Errorf("indexing run canceled: %w", err)
			}
		}

		end := offset + batchSize
		if end > len(hospitals) {
			end = len(hospitals)
		}
		batch := hospitals[offset:end]

		if err := s.processBatch(ctx, batch, progress); err != nil {
			metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
			return progress, err
		}
		progress.RecordBatch()
	}

	s.logger.Info("Indexing run completed",
		zap.Int("processed", progress.Processed),
		zap.Int("successful", progress.Successful),
		zap.Int("failed", progress.Failed),
		zap.Int("batches", progress.Batches),
	)
	metrics.IndexingRunsTotal.WithLabelValues("completed").Inc()
	return progress, nil
}

func (s *Service) processBatch(
	ctx context.Context, batch []domain.HospitalRecord, progress *domidx.Progress,
) error {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].EmbeddingText()
	}

	result, err := s.embedder.BatchEmbed(ctx, texts)

	// Positions that resolved before the batch stopped still count.
	failed := make(map[int]error, len(result.Errors))
	for _, be := range result.Errors {
		failed[be.Index] = be.Err
	}

	for i := range batch {
		if ferr, ok := failed[i]; ok {
			s.recordFailure(progress, &batch[i], ferr)
			continue
		}
		vec := result.Vector(i)
		if vec == nil {
			if err != nil {
				s.recordFailure(progress, &batch[i], err)
			}
			continue
		}
		if werr := s.writer.UpdateVector(ctx, batch[i].ID, vec.Embedding, vec.Provider); werr != nil {
			s.recordFailure(progress, &batch[i], werr)
			continue
		}
		progress.RecordSuccess()
		metrics.IndexingHospitalsTotal.WithLabelValues("success").Inc()
	}

	if err != nil {
		return fmt.Errorf("batch embed: %w", err)
	}
	return nil
}

// finish freezes the progress report and publishes it as the last run.
// An interrupted run stays marked incomplete.
func (s *Service) finish(ctx context.Context, progress *domidx.Progress) {
	if progress == nil {
		return
	}
	if ctx.Err() == nil {
		progress.Complete()
	}
	s.mu.Lock()
	s.lastRun = progress
	s.mu.Unlock()
}

func (s *Service) recordFailure(progress *domidx.Progress, h *domain.HospitalRecord, err error) {
	progress.RecordFailure(h.ID, h.Name, err)
	metrics.IndexingHospitalsTotal.WithLabelValues("failure").Inc()
	s.logger.Warn("Hospital indexing failed",
		zap.String("hospital_id", h.ID),
		zap.Error(err),
	)
}

// pause waits the inter-batch delay, honoring cancellation.
func (s *Service) pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
