package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
	domidx "github.com/careatlas/caresearch/internal/domain/indexing"
	combineduc "github.com/careatlas/caresearch/internal/usecase/combined"
	healthuc "github.com/careatlas/caresearch/internal/usecase/health"
	indexinguc "github.com/careatlas/caresearch/internal/usecase/indexing"
)

type mockSearch struct {
	results []domain.SearchResult
	meta    domain.SearchMetadata
	err     error

	gotQuery   string
	gotFilters domain.SearchFilters
	gotOptions domain.SearchOptions
}

func (m *mockSearch) Search(
	_ context.Context, query string, filters domain.SearchFilters, opts domain.SearchOptions,
) ([]domain.SearchResult, domain.SearchMetadata, error) {
	m.gotQuery = query
	m.gotFilters = filters
	m.gotOptions = opts
	return m.results, m.meta, m.err
}

type mockCombined struct {
	result *combineduc.Result
	err    error

	gotQuery    string
	gotLocation string
	gotLimits   combineduc.Limits
}

func (m *mockCombined) Search(
	_ context.Context, query, location string, limits combineduc.Limits,
) (*combineduc.Result, error) {
	m.gotQuery = query
	m.gotLocation = location
	m.gotLimits = limits
	return m.result, m.err
}

type mockIndexing struct {
	progress *domidx.Progress
	status   indexinguc.Status
	err      error

	gotOpts indexinguc.RunOptions
	gotIDs  []string
	resets  int
}

func (m *mockIndexing) Run(_ context.Context, opts indexinguc.RunOptions) (*domidx.Progress, error) {
	m.gotOpts = opts
	return m.progress, m.err
}

func (m *mockIndexing) Reindex(_ context.Context, ids []string) (*domidx.Progress, error) {
	m.gotIDs = ids
	return m.progress, m.err
}

func (m *mockIndexing) Reset(_ context.Context) error {
	m.resets++
	return m.err
}

func (m *mockIndexing) Status(_ context.Context) (indexinguc.Status, error) {
	return m.status, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type serverMocks struct {
	search   *mockSearch
	combined *mockCombined
	indexing *mockIndexing
	health   *mockHealth
}

func newTestRouter(t *testing.T) (chi.Router, *serverMocks) {
	t.Helper()
	m := &serverMocks{
		search:   &mockSearch{},
		combined: &mockCombined{},
		indexing: &mockIndexing{},
		health:   &mockHealth{},
	}
	srv := NewServer(m.search, m.combined, m.indexing, m.health, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return r, m
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchHospitals_Success(t *testing.T) {
	r, m := newTestRouter(t)
	m.search.results = []domain.SearchResult{
		{
			Hospital:        domain.HospitalRecord{ID: "h1", Name: "General", Type: domain.TypeGeneral, Rating: 4.5},
			SimilarityScore: 0.9,
			TextScore:       1,
			CombinedScore:   0.93,
		},
	}
	m.search.meta = domain.SearchMetadata{Query: "cardiology", TotalResults: 1, HasSemanticSearch: true, Timestamp: time.Now()}

	w := doRequest(t, r, http.MethodPost, "/hospitals/search", `{"query":"cardiology","options":{"limit":5}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if m.search.gotQuery != "cardiology" {
		t.Errorf("query = %q, want cardiology", m.search.gotQuery)
	}
	if m.search.gotOptions.Limit != 5 {
		t.Errorf("limit = %d, want 5", m.search.gotOptions.Limit)
	}

	var resp searchResponseJSON
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Hospital.ID != "h1" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if resp.Results[0].CombinedScore != 0.93 {
		t.Errorf("combinedScore = %v, want 0.93", resp.Results[0].CombinedScore)
	}
	if !resp.Metadata.HasSemanticSearch {
		t.Error("hasSemanticSearch not echoed")
	}
}

func TestSearchHospitals_Get(t *testing.T) {
	r, m := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet,
		"/hospitals/search?q=trauma+care&city=Denver&emergency_services=true&is_verified=false&trauma_level=I&limit=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if m.search.gotQuery != "trauma care" {
		t.Errorf("query = %q, want %q", m.search.gotQuery, "trauma care")
	}
	if m.search.gotFilters.City != "Denver" {
		t.Errorf("city = %q, want Denver", m.search.gotFilters.City)
	}
	if m.search.gotFilters.EmergencyServices == nil || !*m.search.gotFilters.EmergencyServices {
		t.Error("emergency_services filter not parsed")
	}
	if m.search.gotFilters.Verified == nil || *m.search.gotFilters.Verified {
		t.Error("is_verified filter not parsed")
	}
	if m.search.gotFilters.TraumaLevel != "I" {
		t.Errorf("trauma_level = %q, want I", m.search.gotFilters.TraumaLevel)
	}
	if m.search.gotOptions.Limit != 3 {
		t.Errorf("limit = %d, want 3", m.search.gotOptions.Limit)
	}
}

func TestSearchHospitals_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid query", domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed},
		{"quota exhausted", domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded},
		{"provider down", domain.ErrEmbeddingProvider, http.StatusBadGateway, codeProviderError},
		{"unexpected", errors.New("redis exploded"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newTestRouter(t)
			m.search.err = tt.err

			w := doRequest(t, r, http.MethodPost, "/hospitals/search", `{"query":"x"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp errorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestSearchHospitals_InternalErrorHidesDetail(t *testing.T) {
	r, m := newTestRouter(t)
	m.search.err = errors.New("dial tcp 10.0.0.5:6379: connection refused")

	w := doRequest(t, r, http.MethodPost, "/hospitals/search", `{"query":"x"}`)
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Fatalf("internal detail leaked: %s", w.Body.String())
	}
}

func TestSearchHospitals_BadJSON(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(t, r, http.MethodPost, "/hospitals/search", `{"query":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSearchHospitals_InvalidTypeFilter(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(t, r, http.MethodPost, "/hospitals/search",
		`{"query":"x","filters":{"type":"spaceship"}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestSearchCombined(t *testing.T) {
	r, m := newTestRouter(t)
	m.combined.result = &combineduc.Result{
		Query:         "heart attack",
		Location:      "Denver",
		Specialties:   []string{"Cardiology"},
		Hospitals:     []domain.HospitalRecord{{ID: "h1", Name: "Heart Center"}},
		Doctors:       []domain.DoctorRecord{{ID: "d1", FullName: "Dr. Reyes", Specialties: []string{"Cardiology"}}},
		HospitalCount: 1,
		DoctorCount:   1,
		Timestamp:     time.Now(),
	}

	w := doRequest(t, r, http.MethodPost, "/search/combined",
		`{"query":"heart attack","location":"Denver","filters":{"hospitalLimit":5,"doctorLimit":2}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if m.combined.gotLocation != "Denver" {
		t.Errorf("location = %q, want Denver", m.combined.gotLocation)
	}
	if m.combined.gotLimits.Hospitals != 5 || m.combined.gotLimits.Doctors != 2 {
		t.Errorf("limits = %+v, want 5/2", m.combined.gotLimits)
	}

	var resp combinedResponseJSON
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Specialties) != 1 || resp.Specialties[0] != "Cardiology" {
		t.Errorf("detectedSpecialties = %v", resp.Specialties)
	}
	if len(resp.Hospitals) != 1 || len(resp.Doctors) != 1 {
		t.Errorf("hospitals = %d, doctors = %d, want 1 and 1", len(resp.Hospitals), len(resp.Doctors))
	}
	if resp.HospitalCount != 1 || resp.DoctorCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", resp.HospitalCount, resp.DoctorCount)
	}
}

func TestRunIndexing(t *testing.T) {
	r, m := newTestRouter(t)
	m.indexing.progress = &domidx.Progress{Total: 12, Processed: 12, Successful: 12, IsComplete: true}

	w := doRequest(t, r, http.MethodPost, "/admin/indexing/run",
		`{"forceRegenerate":true,"batchSize":5,"delayBetweenBatchesMs":250}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !m.indexing.gotOpts.Force {
		t.Error("forceRegenerate flag not passed through")
	}
	if m.indexing.gotOpts.BatchSize != 5 {
		t.Errorf("batchSize = %d, want 5", m.indexing.gotOpts.BatchSize)
	}
	if m.indexing.gotOpts.BatchDelay != 250*time.Millisecond {
		t.Errorf("delay = %v, want 250ms", m.indexing.gotOpts.BatchDelay)
	}

	var resp domidx.Progress
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Successful != 12 {
		t.Errorf("successful = %d, want 12", resp.Successful)
	}
}

func TestRunIndexing_EmptyBody(t *testing.T) {
	r, m := newTestRouter(t)
	m.indexing.progress = &domidx.Progress{}

	w := doRequest(t, r, http.MethodPost, "/admin/indexing/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if m.indexing.gotOpts.Force {
		t.Error("forceRegenerate defaulted to true")
	}
}

func TestRunIndexing_Conflict(t *testing.T) {
	r, m := newTestRouter(t)
	m.indexing.err = domain.ErrRunInProgress

	w := doRequest(t, r, http.MethodPost, "/admin/indexing/run", `{}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestReindex(t *testing.T) {
	r, m := newTestRouter(t)
	m.indexing.progress = &domidx.Progress{Total: 2, Processed: 2, Successful: 2, IsComplete: true}

	w := doRequest(t, r, http.MethodPost, "/admin/indexing/reindex", `{"hospitalIds":["h1","h2"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if len(m.indexing.gotIDs) != 2 || m.indexing.gotIDs[0] != "h1" {
		t.Errorf("ids = %v, want [h1 h2]", m.indexing.gotIDs)
	}
}

func TestResetIndex(t *testing.T) {
	r, m := newTestRouter(t)

	w := doRequest(t, r, http.MethodPost, "/admin/indexing/reset", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if m.indexing.resets != 1 {
		t.Errorf("resets = %d, want 1", m.indexing.resets)
	}
}

func TestIndexingStatus(t *testing.T) {
	r, m := newTestRouter(t)
	m.indexing.status = indexinguc.Status{TotalActive: 10, WithEmbeddings: 7, WithoutEmbeddings: 3, Coverage: 0.7}

	w := doRequest(t, r, http.MethodGet, "/admin/indexing/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp indexinguc.Status
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Coverage != 0.7 {
		t.Errorf("coverage = %v, want 0.7", resp.Coverage)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		status     healthuc.Status
		wantStatus int
	}{
		{"healthy", healthuc.Healthy, http.StatusOK},
		{"degraded still serves", healthuc.Degraded, http.StatusOK},
		{"unhealthy", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newTestRouter(t)
			m.health.report = healthuc.Report{Status: tt.status}

			w := doRequest(t, r, http.MethodGet, "/health", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
