// Package hospital persists hospital records as hashes and serves the
// filtered vector and lexical candidate queries behind hybrid search.
package hospital

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/careatlas/caresearch/internal/db"
	"github.com/careatlas/caresearch/internal/domain"
)

const (
	keyPrefix = domain.KeyPrefix + "hospital:"
	indexName = keyPrefix + "idx"

	// HNSW build parameters for the vector field.
	hnswM           = 16
	hnswEFConstruct = 200
)

// returnFields fetched for search hits: the full record minus the stored
// vector (similarity comes back as __vector_score).
var returnFields = []string{
	fieldName, fieldDescription, fieldType, fieldCity, fieldState,
	fieldTraumaLevel, fieldEmergency, fieldActive, fieldVerified,
	fieldFeatured, fieldRating, fieldReviewCount, fieldUpdatedAt,
	fieldProvider, fieldEmbeddedAt, fieldHasEmbedding,
}

// store is the consumer interface for hospital persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Scored pairs a record with its vector similarity score.
type Scored struct {
	Hospital   domain.HospitalRecord
	Similarity float64
	TextRank   float64
}

// Repo implements hospital persistence and candidate retrieval.
type Repo struct {
	store store
}

// New creates a hospital repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// IndexName returns the FT index name, for health reporting.
func (r *Repo) IndexName() string { return indexName }

// EnsureIndex creates the hospital FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Text(fieldName).
		Text(fieldDescription).
		Tag(fieldType).
		Tag(fieldCity).
		Tag(fieldState).
		Tag(fieldTraumaLevel).
		Tag(fieldEmergency).
		Tag(fieldActive).
		Tag(fieldVerified).
		Tag(fieldFeatured).
		Tag(fieldHasEmbedding).
		Numeric(fieldRating).
		Numeric(fieldReviewCount).
		Numeric(fieldEmbeddedAt).
		VectorHNSW(fieldVector, domain.VectorDimensions, db.DistanceCosine, hnswM, hnswEFConstruct).As("vector").
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create hospital index: %w", err)
	}
	return nil
}

// Save writes a full hospital record, stamping its modification time.
func (r *Repo) Save(ctx context.Context, h *domain.HospitalRecord) error {
	if h.ID == "" {
		return fmt.Errorf("hospital id is required: %w", domain.ErrInvalidInput)
	}
	if h.UpdatedAt == 0 {
		h.UpdatedAt = time.Now().UnixMilli()
	}
	if err := r.store.HSet(ctx, key(h.ID), buildHashFields(h)); err != nil {
		return fmt.Errorf("save hospital %s: %w", h.ID, err)
	}
	return nil
}

// Get returns a hospital by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.HospitalRecord, error) {
	m, err := r.store.HGetAll(ctx, key(id))
	if err != nil {
		return domain.HospitalRecord{}, fmt.Errorf("get hospital %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.HospitalRecord{}, domain.ErrHospitalNotFound
	}
	return parseHashFields(id, m), nil
}

// GetMulti returns the hospitals for the given ids, skipping missing ones.
func (r *Repo) GetMulti(ctx context.Context, ids []string) ([]domain.HospitalRecord, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get hospitals: %w", err)
	}
	out := make([]domain.HospitalRecord, 0, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out = append(out, parseHashFields(ids[i], m))
	}
	return out, nil
}

// SelectForIndexing returns active hospitals that need (re)embedding:
// those with no stored vector, plus those whose vector predates the
// record's current field values. force selects every active hospital.
func (r *Repo) SelectForIndexing(ctx context.Context, force bool) ([]domain.HospitalRecord, error) {
	const page = 500

	var out []domain.HospitalRecord
	offset := 0
	for {
		sr, err := r.store.SearchList(ctx, indexName, "@active:{1}", offset, page, returnFields)
		if err != nil {
			return nil, fmt.Errorf("select for indexing: %w", err)
		}
		if sr == nil || len(sr.Entries) == 0 {
			break
		}
		for _, e := range sr.Entries {
			h := parseHashFields(idFromKey(e.Key), e.Fields)
			if force || !h.HasEmbedding() || h.EmbeddingStale() {
				out = append(out, h)
			}
		}
		offset += len(sr.Entries)
		if offset >= sr.Total {
			break
		}
	}
	return out, nil
}

// UpdateVector stores a freshly generated embedding with its provenance.
func (r *Repo) UpdateVector(ctx context.Context, id string, vector []float32, provider string) error {
	if len(vector) != domain.VectorDimensions {
		return fmt.Errorf("vector has %d dims, schema requires %d: %w",
			len(vector), domain.VectorDimensions, domain.ErrVectorDimMismatch)
	}
	exists, err := r.store.Exists(ctx, key(id))
	if err != nil {
		return fmt.Errorf("check hospital %s: %w", id, err)
	}
	if !exists {
		return domain.ErrHospitalNotFound
	}

	now := time.Now().UnixMilli()
	fields := map[string]string{
		fieldVector:       vectorToBytes(vector),
		fieldProvider:     provider,
		fieldEmbeddedAt:   fmt.Sprintf("%d", now),
		fieldHasEmbedding: "1",
	}
	if err := r.store.HSet(ctx, key(id), fields); err != nil {
		return fmt.Errorf("update vector %s: %w", id, err)
	}
	return nil
}

// ResetEmbeddings unconditionally clears every stored vector. Used to force
// a full rebuild after a composer template or provider change.
func (r *Repo) ResetEmbeddings(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan hospitals: %w", err)
	}

	items := make([]db.HashSetItem, 0, len(keys))
	for _, k := range keys {
		if k == indexName {
			continue
		}
		if err := r.store.HDel(ctx, k, fieldVector, fieldProvider, fieldEmbeddedAt); err != nil {
			return fmt.Errorf("clear vector %s: %w", k, err)
		}
		items = append(items, db.HashSetItem{
			Key:    k,
			Fields: map[string]string{fieldHasEmbedding: "0"},
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("reset embedding flags: %w", err)
	}
	return nil
}

// CountActive returns the number of active hospitals.
func (r *Repo) CountActive(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, "@active:{1}")
	if err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

// CountEmbedded returns the number of active hospitals with a stored vector.
func (r *Repo) CountEmbedded(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, "@active:{1} @has_embedding:{1}")
	if err != nil {
		return 0, fmt.Errorf("count embedded: %w", err)
	}
	return n, nil
}

// LastEmbeddedAt returns the most recent embedding timestamp, zero when
// nothing is indexed.
func (r *Repo) LastEmbeddedAt(ctx context.Context) (time.Time, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    indexName,
		Query:        "@has_embedding:{1}",
		TopK:         1,
		SortBy:       fieldEmbeddedAt,
		SortDesc:     true,
		ReturnFields: []string{fieldEmbeddedAt},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("last embedded at: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return time.Time{}, nil
	}
	h := parseHashFields("", sr.Entries[0].Fields)
	if h.EmbeddedAt == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(h.EmbeddedAt).UTC(), nil
}

// SearchKNN returns the top-k hospitals by vector similarity under the
// given structured filters. City/state substring filters are applied as a
// post-filter since tag matching is exact.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, filters domain.SearchFilters, k int,
) ([]Scored, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Filter:       renderFilter(filters),
		Vector:       vector,
		K:            k,
		ReturnFields: append([]string{"__vector_score"}, returnFields...),
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return r.collect(sr, filters, func(e db.SearchEntry) Scored {
		return Scored{
			Hospital:   parseHashFields(idFromKey(e.Key), e.Fields),
			Similarity: e.Score,
		}
	}), nil
}

// SearchLexical returns hospitals whose name or description matches any of
// the given terms, best lexical rank first. Ranks are normalized to [0,1]
// against the best hit.
func (r *Repo) SearchLexical(
	ctx context.Context, terms []string, filters domain.SearchFilters, topK int,
) ([]Scored, error) {
	expr := termsExpression(terms)
	if expr == "" {
		return nil, nil
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    indexName,
		Query:        fmt.Sprintf("@%s|%s:(%s)", fieldName, fieldDescription, expr),
		Filter:       renderFilter(filters),
		TopK:         topK,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search lexical: %w", err)
	}

	var maxScore float64
	for _, e := range sr.Entries {
		if e.Score > maxScore {
			maxScore = e.Score
		}
	}

	return r.collect(sr, filters, func(e db.SearchEntry) Scored {
		rank := 0.0
		if maxScore > 0 {
			rank = e.Score / maxScore
		}
		return Scored{
			Hospital: parseHashFields(idFromKey(e.Key), e.Fields),
			TextRank: rank,
		}
	}), nil
}

// SearchTop returns hospitals matching the terms ordered by rating
// descending; used by the cross-entity orchestrator.
func (r *Repo) SearchTop(
	ctx context.Context, terms []string, filters domain.SearchFilters, limit int,
) ([]domain.HospitalRecord, error) {
	expr := termsExpression(terms)
	if expr == "" {
		return nil, nil
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    indexName,
		Query:        fmt.Sprintf("@%s|%s:(%s)", fieldName, fieldDescription, expr),
		Filter:       renderFilter(filters),
		TopK:         limit,
		SortBy:       fieldRating,
		SortDesc:     true,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search top: %w", err)
	}

	scored := r.collect(sr, filters, func(e db.SearchEntry) Scored {
		return Scored{Hospital: parseHashFields(idFromKey(e.Key), e.Fields)}
	})
	out := make([]domain.HospitalRecord, len(scored))
	for i, s := range scored {
		out[i] = s.Hospital
	}
	return out, nil
}

// collect maps entries through build and applies the substring post-filters.
func (r *Repo) collect(
	sr *db.SearchResult, filters domain.SearchFilters, build func(db.SearchEntry) Scored,
) []Scored {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	out := make([]Scored, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		s := build(e)
		if !matchesSubstrings(&s.Hospital, filters) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// renderFilter translates structured filters into an FT.SEARCH pre-filter.
// City/state substring matching cannot be expressed as a tag filter and is
// applied by matchesSubstrings after the fetch.
func renderFilter(f domain.SearchFilters) string {
	parts := []string{"@active:{1}"}
	if f.WantVerified() {
		parts = append(parts, "@verified:{1}")
	}
	if f.Type != "" {
		parts = append(parts, fmt.Sprintf("@type:{%s}", tagEscaper.Replace(string(f.Type))))
	}
	if f.TraumaLevel != "" {
		parts = append(parts, fmt.Sprintf("@trauma_level:{%s}", tagEscaper.Replace(f.TraumaLevel)))
	}
	if f.EmergencyServices != nil {
		parts = append(parts, fmt.Sprintf("@emergency:{%s}", boolTag(*f.EmergencyServices)))
	}
	return strings.Join(parts, " ")
}

// matchesSubstrings applies the case-insensitive city/state substring filters.
func matchesSubstrings(h *domain.HospitalRecord, f domain.SearchFilters) bool {
	if f.City != "" && !strings.Contains(strings.ToLower(h.City), strings.ToLower(f.City)) {
		return false
	}
	if f.State != "" && !strings.Contains(strings.ToLower(h.State), strings.ToLower(f.State)) {
		return false
	}
	return true
}

// termsExpression builds an OR expression over escaped query terms.
func termsExpression(terms []string) string {
	escaped := make([]string, 0, len(terms))
	for _, t := range terms {
		e := escapeQuery(strings.TrimSpace(t))
		if e != "" {
			escaped = append(escaped, e)
		}
	}
	return strings.Join(escaped, "|")
}

func key(id string) string { return keyPrefix + id }

func idFromKey(k string) string { return strings.TrimPrefix(k, keyPrefix) }

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
	"\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^", "&", "\\&", "*", "\\*",
	"(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	" ", "\\ ",
)

var queryEscaper = strings.NewReplacer(
	`\`, `\\`, `'`, `\'`, `"`, `\"`, `@`, `\@`, `{`, `\{`, `}`, `\}`,
	`(`, `\(`, `)`, `\)`, `|`, `\|`, `-`, `\-`, `~`, `\~`, `*`, `\*`,
	`[`, `\[`, `]`, `\]`, `!`, `\!`, `%`, `\%`, `^`, `\^`, `$`, `\$`,
	`<`, `\<`, `>`, `\>`, `=`, `\=`, `;`, `\;`, `+`, `\+`,
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}
