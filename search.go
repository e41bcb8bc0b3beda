package caresearch

import (
	"context"

	"github.com/careatlas/caresearch/internal/domain"
	combineduc "github.com/careatlas/caresearch/internal/usecase/combined"
)

// Public aliases so SDK consumers never import internal packages.
type (
	// Hospital is a searchable hospital record.
	Hospital = domain.HospitalRecord
	// Doctor is a searchable doctor record.
	Doctor = domain.DoctorRecord
	// HospitalType classifies a hospital.
	HospitalType = domain.HospitalType
	// SearchResult is one ranked hospital hit.
	SearchResult = domain.SearchResult
	// SearchMetadata records how a search executed.
	SearchMetadata = domain.SearchMetadata
	// SearchOptions are the tunable ranking weights.
	SearchOptions = domain.SearchOptions
	// CombinedResult is the outcome of a cross-entity search.
	CombinedResult = combineduc.Result
)

// Hospital type values.
const (
	TypeGeneral        = domain.TypeGeneral
	TypeSpecialty      = domain.TypeSpecialty
	TypeTeaching       = domain.TypeTeaching
	TypeClinic         = domain.TypeClinic
	TypeUrgentCare     = domain.TypeUrgentCare
	TypeRehabilitation = domain.TypeRehabilitation
	TypePsychiatric    = domain.TypePsychiatric
	TypeChildrens      = domain.TypeChildrens
	TypeMaternity      = domain.TypeMaternity
	TypeMilitary       = domain.TypeMilitary
	TypeVeterans       = domain.TypeVeterans
)

// SearchBuilder is a fluent builder for hospital searches.
type SearchBuilder struct {
	client *Client

	query   string
	filters domain.SearchFilters
	opts    domain.SearchOptions
}

// City filters by city (case-insensitive substring).
func (b *SearchBuilder) City(city string) *SearchBuilder {
	b.filters.City = city
	return b
}

// State filters by state (case-insensitive substring).
func (b *SearchBuilder) State(state string) *SearchBuilder {
	b.filters.State = state
	return b
}

// Type filters by hospital type.
func (b *SearchBuilder) Type(t HospitalType) *SearchBuilder {
	b.filters.Type = t
	return b
}

// TraumaLevel filters by exact trauma center level.
func (b *SearchBuilder) TraumaLevel(level string) *SearchBuilder {
	b.filters.TraumaLevel = level
	return b
}

// EmergencyOnly keeps only hospitals with emergency services.
func (b *SearchBuilder) EmergencyOnly() *SearchBuilder {
	t := true
	b.filters.EmergencyServices = &t
	return b
}

// IncludeUnverified disables the default verified-only filter.
func (b *SearchBuilder) IncludeUnverified() *SearchBuilder {
	f := false
	b.filters.Verified = &f
	return b
}

// Limit caps the number of results.
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.opts.Limit = n
	return b
}

// Weights overrides the semantic/text blend for this search.
func (b *SearchBuilder) Weights(semantic, text float64) *SearchBuilder {
	b.opts.SemanticWeight = semantic
	b.opts.TextWeight = text
	return b
}

// Threshold overrides the similarity floor for this search.
func (b *SearchBuilder) Threshold(t float64) *SearchBuilder {
	b.opts.SimilarityThreshold = t
	return b
}

// Do executes the search.
func (b *SearchBuilder) Do(ctx context.Context) ([]SearchResult, SearchMetadata, error) {
	return b.client.searchSvc.Search(ctx, b.query, b.filters, b.opts)
}
