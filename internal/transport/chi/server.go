// Package chi is the HTTP transport: routing, request decoding, and the
// domain-error to status-code mapping.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
	healthuc "github.com/careatlas/caresearch/internal/usecase/health"
	indexinguc "github.com/careatlas/caresearch/internal/usecase/indexing"
)

// Error response codes.
const (
	codeBadRequest       = "bad_request"
	codeInvalidQuery     = "invalid_query"
	codeValidationFailed = "validation_failed"
	codeHospitalNotFound = "hospital_not_found"
	codeRunInProgress    = "indexing_run_in_progress"
	codeQuotaExceeded    = "embedding_quota_exceeded"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search and indexing services over HTTP.
type Server struct {
	search        HospitalSearcher
	combined      CombinedSearcher
	indexing      IndexingService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search HospitalSearcher,
	combined CombinedSearcher,
	indexing IndexingService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		combined: combined,
		indexing: indexing,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrHospitalNotFound, http.StatusNotFound, codeHospitalNotFound),
		sentinelHandler(domain.ErrRunInProgress, http.StatusConflict, codeRunInProgress),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Routes mounts all endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/hospitals/search", s.SearchHospitals)
	r.Get("/hospitals/search", s.SearchHospitalsGet)
	r.Post("/search/combined", s.SearchCombined)

	r.Route("/admin/indexing", func(r chi.Router) {
		r.Post("/run", s.RunIndexing)
		r.Post("/reindex", s.Reindex)
		r.Post("/reset", s.ResetIndex)
		r.Get("/status", s.IndexingStatus)
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchHospitals handles POST /hospitals/search.
func (s *Server) SearchHospitals(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.runHospitalSearch(w, r, &req)
}

// SearchHospitalsGet handles GET /hospitals/search with query parameters.
func (s *Server) SearchHospitalsGet(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	opts, err := optionsFromQuery(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	req := searchRequest{
		Query:   r.URL.Query().Get("q"),
		Filters: filters,
		Options: opts,
	}
	s.runHospitalSearch(w, r, &req)
}

func (s *Server) runHospitalSearch(w http.ResponseWriter, r *http.Request, req *searchRequest) {
	filters, err := req.Filters.toDomain()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results, meta, err := s.search.Search(r.Context(), req.Query, filters, req.Options.toDomain())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseJSON{
		Results:  searchResultsToJSON(results),
		Metadata: metadataToJSON(meta),
	})
}

// SearchCombined handles POST /search/combined.
func (s *Server) SearchCombined(w http.ResponseWriter, r *http.Request) {
	var req combinedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := s.combined.Search(r.Context(), req.Query, req.Location, req.limits())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := combinedResponseJSON{
		Query:         result.Query,
		Location:      result.Location,
		Specialties:   result.Specialties,
		Hospitals:     make([]hospitalJSON, len(result.Hospitals)),
		HospitalCount: result.HospitalCount,
		DoctorCount:   result.DoctorCount,
		Timestamp:     result.Timestamp,
	}
	for i := range result.Hospitals {
		resp.Hospitals[i] = hospitalToJSON(&result.Hospitals[i])
	}
	if len(result.Doctors) > 0 {
		resp.Doctors = make([]doctorJSON, len(result.Doctors))
		for i := range result.Doctors {
			resp.Doctors[i] = doctorToJSON(&result.Doctors[i])
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// RunIndexing handles POST /admin/indexing/run.
func (s *Server) RunIndexing(w http.ResponseWriter, r *http.Request) {
	var req indexingRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	progress, err := s.indexing.Run(r.Context(), indexinguc.RunOptions{
		Force:      req.ForceRegenerate,
		BatchSize:  req.BatchSize,
		BatchDelay: time.Duration(req.DelayBetweenBatchesMs) * time.Millisecond,
	})
	if err != nil && progress == nil {
		s.handleDomainError(w, err)
		return
	}
	// A partially-failed run still reports its progress.
	writeJSON(w, http.StatusOK, progress)
}

// Reindex handles POST /admin/indexing/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	progress, err := s.indexing.Reindex(r.Context(), req.HospitalIDs)
	if err != nil && progress == nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// ResetIndex handles POST /admin/indexing/reset.
func (s *Server) ResetIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.Reset(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IndexingStatus handles GET /admin/indexing/status.
func (s *Server) IndexingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.indexing.Status(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidInput,
		domain.ErrVectorDimMismatch,
		domain.ErrHospitalNotFound,
		domain.ErrRunInProgress,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProvider,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
