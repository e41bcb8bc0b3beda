// Package doctor persists doctor records for cross-entity search.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/careatlas/caresearch/internal/db"
	"github.com/careatlas/caresearch/internal/domain"
)

const (
	keyPrefix = domain.KeyPrefix + "doctor:"
	indexName = keyPrefix + "idx"
)

var returnFields = []string{
	fieldFullName, fieldSpecialties, fieldExperience,
	fieldActive, fieldVerified, fieldAccepting, fieldAffiliations,
}

// store is the consumer interface for doctor persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements doctor persistence and search.
type Repo struct {
	store store
}

// New creates a doctor repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the doctor FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Text(fieldFullName).
		TagWithSeparator(fieldSpecialties, specialtySep).
		Tag(fieldActive).
		Tag(fieldVerified).
		Tag(fieldAccepting).
		Numeric(fieldExperience).
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create doctor index: %w", err)
	}
	return nil
}

// Save writes a full doctor record.
func (r *Repo) Save(ctx context.Context, d *domain.DoctorRecord) error {
	if d.ID == "" {
		return fmt.Errorf("doctor id is required: %w", domain.ErrInvalidInput)
	}
	if err := r.store.HSet(ctx, keyPrefix+d.ID, buildHashFields(d)); err != nil {
		return fmt.Errorf("save doctor %s: %w", d.ID, err)
	}
	return nil
}

// Get returns a doctor by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.DoctorRecord, error) {
	m, err := r.store.HGetAll(ctx, keyPrefix+id)
	if err != nil {
		return domain.DoctorRecord{}, fmt.Errorf("get doctor %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.DoctorRecord{}, domain.ErrDoctorNotFound
	}
	return parseHashFields(id, m), nil
}

// Search returns active, verified, accepting doctors matching any of the
// given specialties (or any doctor when none are given), ordered by years
// of experience descending.
func (r *Repo) Search(ctx context.Context, specialties []string, limit int) ([]domain.DoctorRecord, error) {
	parts := []string{"@active:{1}", "@verified:{1}", "@accepting:{1}"}
	if tag := specialtiesTag(specialties); tag != "" {
		parts = append(parts, tag)
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    indexName,
		Query:        strings.Join(parts, " "),
		TopK:         limit,
		SortBy:       fieldExperience,
		SortDesc:     true,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search doctors: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	out := make([]domain.DoctorRecord, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, parseHashFields(strings.TrimPrefix(e.Key, keyPrefix), e.Fields))
	}
	return out, nil
}

// specialtiesTag renders an OR tag filter over the given specialty names.
func specialtiesTag(specialties []string) string {
	if len(specialties) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(specialties))
	escaped := make([]string, 0, len(specialties))
	for _, s := range specialties {
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		escaped = append(escaped, tagEscaper.Replace(s))
	}
	if len(escaped) == 0 {
		return ""
	}
	return fmt.Sprintf("@%s:{%s}", fieldSpecialties, strings.Join(escaped, "|"))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "{", "\\{", "}", "\\}", "'", "\\'",
	":", "\\:", "-", "\\-", "(", "\\(", ")", "\\)", " ", "\\ ",
)
