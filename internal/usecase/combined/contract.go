package combined

import (
	"context"

	"github.com/careatlas/caresearch/internal/domain"
)

// HospitalSearcher returns top-rated hospitals matching the terms.
type HospitalSearcher interface {
	SearchTop(
		ctx context.Context, terms []string,
		filters domain.SearchFilters, limit int,
	) ([]domain.HospitalRecord, error)
}

// DoctorSearcher returns doctors by specialty, most experienced first.
type DoctorSearcher interface {
	Search(ctx context.Context, specialties []string, limit int) ([]domain.DoctorRecord, error)
}
