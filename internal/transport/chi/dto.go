package chi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/careatlas/caresearch/internal/domain"
	combineduc "github.com/careatlas/caresearch/internal/usecase/combined"
)

// Wire DTOs. Domain records carry indexing state that must not leak to
// clients, so every response goes through an explicit projection.

type hospitalJSON struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	Type              string  `json:"type"`
	City              string  `json:"city"`
	State             string  `json:"state"`
	TraumaLevel       string  `json:"traumaLevel,omitempty"`
	EmergencyServices bool    `json:"emergencyServices"`
	Verified          bool    `json:"verified"`
	Featured          bool    `json:"featured,omitempty"`
	Rating            float64 `json:"rating"`
	ReviewCount       int     `json:"reviewCount"`
}

type searchResultJSON struct {
	Hospital        hospitalJSON `json:"hospital"`
	SimilarityScore float64      `json:"similarityScore"`
	TextScore       float64      `json:"textScore"`
	CombinedScore   float64      `json:"combinedScore"`
}

type searchOptionsJSON struct {
	SemanticWeight      float64 `json:"semanticWeight"`
	TextWeight          float64 `json:"textWeight"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	Limit               int     `json:"limit"`
}

type searchFiltersJSON struct {
	City              string `json:"city,omitempty"`
	State             string `json:"state,omitempty"`
	Type              string `json:"type,omitempty"`
	TraumaLevel       string `json:"traumaLevel,omitempty"`
	EmergencyServices *bool  `json:"emergencyServices,omitempty"`
	Verified          *bool  `json:"verified,omitempty"`
}

type searchMetadataJSON struct {
	Query             string            `json:"query"`
	TotalResults      int               `json:"totalResults"`
	HasSemanticSearch bool              `json:"hasSemanticSearch"`
	Options           searchOptionsJSON `json:"options"`
	Filters           searchFiltersJSON `json:"filters"`
	Timestamp         time.Time         `json:"timestamp"`
}

type searchResponseJSON struct {
	Results  []searchResultJSON `json:"results"`
	Metadata searchMetadataJSON `json:"metadata"`
}

type doctorJSON struct {
	ID                string                       `json:"id"`
	FullName          string                       `json:"fullName"`
	Specialties       []string                     `json:"specialties,omitempty"`
	YearsExperience   int                          `json:"yearsExperience"`
	AcceptingPatients bool                         `json:"acceptingPatients"`
	Affiliations      []domain.HospitalAffiliation `json:"affiliations,omitempty"`
}

type combinedResponseJSON struct {
	Query         string         `json:"query"`
	Location      string         `json:"location,omitempty"`
	Specialties   []string       `json:"detectedSpecialties,omitempty"`
	Hospitals     []hospitalJSON `json:"hospitals"`
	Doctors       []doctorJSON   `json:"doctors,omitempty"`
	HospitalCount int            `json:"hospitalCount"`
	DoctorCount   int            `json:"doctorCount"`
	Timestamp     time.Time      `json:"timestamp"`
}

type searchFiltersRequest struct {
	City              string `json:"city,omitempty"`
	State             string `json:"state,omitempty"`
	Type              string `json:"type,omitempty"`
	TraumaLevel       string `json:"traumaLevel,omitempty"`
	EmergencyServices *bool  `json:"emergencyServices,omitempty"`
	Verified          *bool  `json:"verified,omitempty"`
}

type searchOptionsRequest struct {
	SemanticWeight      float64 `json:"semanticWeight,omitempty"`
	TextWeight          float64 `json:"textWeight,omitempty"`
	SimilarityThreshold float64 `json:"similarityThreshold,omitempty"`
	Limit               int     `json:"limit,omitempty"`
}

type searchRequest struct {
	Query   string                `json:"query"`
	Filters *searchFiltersRequest `json:"filters,omitempty"`
	Options *searchOptionsRequest `json:"options,omitempty"`
}

type combinedFiltersRequest struct {
	HospitalLimit int `json:"hospitalLimit,omitempty"`
	DoctorLimit   int `json:"doctorLimit,omitempty"`
}

type combinedRequest struct {
	Query    string                  `json:"query"`
	Location string                  `json:"location,omitempty"`
	Filters  *combinedFiltersRequest `json:"filters,omitempty"`
}

func (r *combinedRequest) limits() combineduc.Limits {
	if r.Filters == nil {
		return combineduc.Limits{}
	}
	return combineduc.Limits{
		Hospitals: r.Filters.HospitalLimit,
		Doctors:   r.Filters.DoctorLimit,
	}
}

type indexingRunRequest struct {
	BatchSize             int  `json:"batchSize,omitempty"`
	ForceRegenerate       bool `json:"forceRegenerate,omitempty"`
	DelayBetweenBatchesMs int  `json:"delayBetweenBatchesMs,omitempty"`
}

type reindexRequest struct {
	HospitalIDs []string `json:"hospitalIds"`
}

func hospitalToJSON(h *domain.HospitalRecord) hospitalJSON {
	return hospitalJSON{
		ID:                h.ID,
		Name:              h.Name,
		Description:       h.Description,
		Type:              string(h.Type),
		City:              h.City,
		State:             h.State,
		TraumaLevel:       h.TraumaLevel,
		EmergencyServices: h.EmergencyServices,
		Verified:          h.Verified,
		Featured:          h.Featured,
		Rating:            h.Rating,
		ReviewCount:       h.ReviewCount,
	}
}

func doctorToJSON(d *domain.DoctorRecord) doctorJSON {
	return doctorJSON{
		ID:                d.ID,
		FullName:          d.FullName,
		Specialties:       d.Specialties,
		YearsExperience:   d.YearsExperience,
		AcceptingPatients: d.AcceptingPatients,
		Affiliations:      d.Affiliations,
	}
}

func searchResultsToJSON(results []domain.SearchResult) []searchResultJSON {
	out := make([]searchResultJSON, len(results))
	for i := range results {
		out[i] = searchResultJSON{
			Hospital:        hospitalToJSON(&results[i].Hospital),
			SimilarityScore: results[i].SimilarityScore,
			TextScore:       results[i].TextScore,
			CombinedScore:   results[i].CombinedScore,
		}
	}
	return out
}

func metadataToJSON(meta domain.SearchMetadata) searchMetadataJSON {
	return searchMetadataJSON{
		Query:             meta.Query,
		TotalResults:      meta.TotalResults,
		HasSemanticSearch: meta.HasSemanticSearch,
		Options: searchOptionsJSON{
			SemanticWeight:      meta.Options.SemanticWeight,
			TextWeight:          meta.Options.TextWeight,
			SimilarityThreshold: meta.Options.SimilarityThreshold,
			Limit:               meta.Options.Limit,
		},
		Filters: searchFiltersJSON{
			City:              meta.Filters.City,
			State:             meta.Filters.State,
			Type:              string(meta.Filters.Type),
			TraumaLevel:       meta.Filters.TraumaLevel,
			EmergencyServices: meta.Filters.EmergencyServices,
			Verified:          meta.Filters.Verified,
		},
		Timestamp: meta.Timestamp,
	}
}

func (r *searchFiltersRequest) toDomain() (domain.SearchFilters, error) {
	if r == nil {
		return domain.SearchFilters{}, nil
	}
	f := domain.SearchFilters{
		City:              r.City,
		State:             r.State,
		TraumaLevel:       r.TraumaLevel,
		EmergencyServices: r.EmergencyServices,
		Verified:          r.Verified,
	}
	if r.Type != "" {
		t, err := domain.ParseHospitalType(r.Type)
		if err != nil {
			return domain.SearchFilters{}, err
		}
		f.Type = t
	}
	return f, nil
}

func (r *searchOptionsRequest) toDomain() domain.SearchOptions {
	if r == nil {
		return domain.SearchOptions{}
	}
	return domain.SearchOptions{
		SemanticWeight:      r.SemanticWeight,
		TextWeight:          r.TextWeight,
		SimilarityThreshold: r.SimilarityThreshold,
		Limit:               r.Limit,
	}
}

// filtersFromQuery parses the GET variant of hospital search, where the
// filters arrive as query parameters.
func filtersFromQuery(q map[string][]string) (*searchFiltersRequest, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	f := &searchFiltersRequest{
		City:        get("city"),
		State:       get("state"),
		Type:        get("type"),
		TraumaLevel: get("trauma_level"),
	}
	for key, dst := range map[string]**bool{
		"emergency_services": &f.EmergencyServices,
		"is_verified":        &f.Verified,
	} {
		if raw := get(key); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%s must be a boolean: %w", key, domain.ErrInvalidInput)
			}
			*dst = &b
		}
	}
	return f, nil
}

func optionsFromQuery(r *http.Request) (*searchOptionsRequest, error) {
	opts := &searchOptionsRequest{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("limit must be an integer: %w", domain.ErrInvalidInput)
		}
		opts.Limit = n
	}
	if raw := r.URL.Query().Get("similarity_threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("similarity_threshold must be a number: %w", domain.ErrInvalidInput)
		}
		opts.SimilarityThreshold = v
	}
	return opts, nil
}
