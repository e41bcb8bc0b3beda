// Package health aggregates component checks into one service report.
// Database loss is fatal for search; a dead embedding provider only
// degrades it (lexical search keeps working).
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates search still answers but without semantics.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot answer searches.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	index     IndexChecker
	indexName string
	embedding EmbeddingChecker
}

// New creates a Service. index and embedding can be nil.
func New(db DBPinger, index IndexChecker, indexName string, embedding EmbeddingChecker) *Service {
	return &Service{db: db, index: index, indexName: indexName, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbOK := s.db.Ping(ctx) == nil
	if dbOK {
		checks["database"] = CheckOK
	} else {
		checks["database"] = CheckError
	}

	if s.index != nil && dbOK {
		if ok, err := s.index.IndexExists(ctx, s.indexName); err == nil && ok {
			checks["index"] = CheckOK
		} else {
			checks["index"] = CheckError
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if !dbOK {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
