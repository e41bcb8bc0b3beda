// Package combined orchestrates cross-entity search: one query fans out
// to hospitals and, when the query suggests it, doctors. Each entity
// search fails independently so a doctor-side fault never empties the
// hospital results.
package combined

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/careatlas/caresearch/internal/domain"
	"github.com/careatlas/caresearch/internal/domain/specialty"
	"github.com/careatlas/caresearch/internal/metrics"
)

// Default per-entity result caps.
const (
	DefaultHospitalLimit = 20
	DefaultDoctorLimit   = 15
)

// Limits bounds results per entity type. Zero values use the service
// defaults.
type Limits struct {
	Hospitals int
	Doctors   int
}

// Result is the cross-entity search response. Specialties records what
// was inferred from the query, empty when nothing matched.
type Result struct {
	Query         string                  `json:"query"`
	Location      string                  `json:"location,omitempty"`
	Specialties   []string                `json:"detectedSpecialties,omitempty"`
	Hospitals     []domain.HospitalRecord `json:"hospitals"`
	Doctors       []domain.DoctorRecord   `json:"doctors,omitempty"`
	HospitalCount int                     `json:"hospitalCount"`
	DoctorCount   int                     `json:"doctorCount"`
	Timestamp     time.Time               `json:"timestamp"`
}

// Service handles combined hospital and doctor search.
type Service struct {
	hospitals     HospitalSearcher
	doctors       DoctorSearcher
	hospitalLimit int
	doctorLimit   int
	logger        *zap.Logger
}

// New creates a combined search service with default entity limits.
func New(hospitals HospitalSearcher, doctors DoctorSearcher, logger *zap.Logger) *Service {
	return &Service{
		hospitals:     hospitals,
		doctors:       doctors,
		hospitalLimit: DefaultHospitalLimit,
		doctorLimit:   DefaultDoctorLimit,
		logger:        logger,
	}
}

// WithLimits overrides the default per-entity result caps.
func (s *Service) WithLimits(hospitals, doctors int) *Service {
	if hospitals > 0 {
		s.hospitalLimit = hospitals
	}
	if doctors > 0 {
		s.doctorLimit = doctors
	}
	return s
}

// Search fans the query out to hospitals and doctors. location narrows
// hospitals by city substring. Doctors are only searched when the query
// names a specialty or asks for a practitioner. The search fails only
// when every entity search fails.
func (s *Service) Search(
	ctx context.Context, query, location string, limits Limits,
) (*Result, error) {
	q, err := domain.ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	if limits.Hospitals <= 0 {
		limits.Hospitals = s.hospitalLimit
	}
	if limits.Doctors <= 0 {
		limits.Doctors = s.doctorLimit
	}

	start := time.Now()

	result := &Result{
		Query:       q,
		Location:    location,
		Specialties: specialty.Infer(q),
		Timestamp:   time.Now().UTC(),
	}

	hospitals, hospErr := s.searchHospitals(ctx, q, location, result.Specialties, limits.Hospitals)
	if hospErr != nil {
		s.logger.Warn("Hospital search failed in combined search",
			zap.String("query", q),
			zap.Error(hospErr),
		)
	} else {
		result.Hospitals = hospitals
		result.HospitalCount = len(hospitals)
	}

	var docErr error
	searchedDoctors := false
	if s.wantsDoctors(q, result.Specialties) {
		searchedDoctors = true
		var doctors []domain.DoctorRecord
		doctors, docErr = s.doctors.Search(ctx, result.Specialties, limits.Doctors)
		if docErr != nil {
			s.logger.Warn("Doctor search failed in combined search",
				zap.String("query", q),
				zap.Error(docErr),
			)
		} else {
			result.Doctors = doctors
			result.DoctorCount = len(doctors)
		}
	}

	metrics.SearchRequestDuration.WithLabelValues("combined").Observe(time.Since(start).Seconds())

	if hospErr != nil && (!searchedDoctors || docErr != nil) {
		metrics.SearchRequestsTotal.WithLabelValues("combined", "error").Inc()
		return nil, hospErr
	}
	metrics.SearchRequestsTotal.WithLabelValues("combined", "success").Inc()
	return result, nil
}

// searchHospitals matches the raw query tokens first; when nothing
// matches, it retries with the inferred specialties so colloquial
// phrasings still reach clinical wording.
func (s *Service) searchHospitals(
	ctx context.Context, q, location string, specialties []string, limit int,
) ([]domain.HospitalRecord, error) {
	filters := domain.SearchFilters{City: location}

	rows, err := s.hospitals.SearchTop(ctx, strings.Fields(q), filters, limit)
	if err != nil || len(rows) > 0 {
		return rows, err
	}
	if len(specialties) == 0 {
		return nil, nil
	}
	return s.hospitals.SearchTop(ctx, specialties, filters, limit)
}

// wantsDoctors decides whether the query should reach the doctor index.
func (s *Service) wantsDoctors(q string, specialties []string) bool {
	if len(specialties) > 0 {
		return true
	}
	lower := strings.ToLower(q)
	for _, word := range []string{"doctor", "specialist", "physician", "surgeon"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
