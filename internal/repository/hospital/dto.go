package hospital

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/careatlas/caresearch/internal/domain"
)

// Hash field names. Vector and provenance fields are prefixed with
// underscores to keep them apart from record attributes.
const (
	fieldName         = "name"
	fieldDescription  = "description"
	fieldType         = "type"
	fieldCity         = "city"
	fieldState        = "state"
	fieldTraumaLevel  = "trauma_level"
	fieldEmergency    = "emergency"
	fieldActive       = "active"
	fieldVerified     = "verified"
	fieldFeatured     = "featured"
	fieldRating       = "rating"
	fieldReviewCount  = "review_count"
	fieldUpdatedAt    = "updated_at"
	fieldVector       = "__vector"
	fieldHasEmbedding = "has_embedding"
	fieldProvider     = "__provider"
	fieldEmbeddedAt   = "embedded_at"
)

// buildHashFields converts a HospitalRecord into a flat map for HSET.
func buildHashFields(h *domain.HospitalRecord) map[string]string {
	m := map[string]string{
		fieldName:         h.Name,
		fieldDescription:  h.Description,
		fieldType:         string(h.Type),
		fieldCity:         h.City,
		fieldState:        h.State,
		fieldTraumaLevel:  h.TraumaLevel,
		fieldEmergency:    boolTag(h.EmergencyServices),
		fieldActive:       boolTag(h.Active),
		fieldVerified:     boolTag(h.Verified),
		fieldFeatured:     boolTag(h.Featured),
		fieldRating:       strconv.FormatFloat(h.Rating, 'f', -1, 64),
		fieldReviewCount:  strconv.Itoa(h.ReviewCount),
		fieldUpdatedAt:    strconv.FormatInt(h.UpdatedAt, 10),
		fieldHasEmbedding: boolTag(h.HasEmbedding()),
	}
	if h.HasEmbedding() {
		m[fieldVector] = vectorToBytes(h.Embedding)
		m[fieldProvider] = h.EmbeddingProvider
		m[fieldEmbeddedAt] = strconv.FormatInt(h.EmbeddedAt, 10)
	}
	return m
}

// parseHashFields converts a flat hash map back into a HospitalRecord.
func parseHashFields(id string, m map[string]string) domain.HospitalRecord {
	h := domain.HospitalRecord{
		ID:                id,
		Name:              m[fieldName],
		Description:       m[fieldDescription],
		Type:              domain.HospitalType(m[fieldType]),
		City:              m[fieldCity],
		State:             m[fieldState],
		TraumaLevel:       m[fieldTraumaLevel],
		EmergencyServices: m[fieldEmergency] == "1",
		Active:            m[fieldActive] == "1",
		Verified:          m[fieldVerified] == "1",
		Featured:          m[fieldFeatured] == "1",
		EmbeddingProvider: m[fieldProvider],
	}
	h.Rating, _ = strconv.ParseFloat(m[fieldRating], 64)
	h.ReviewCount, _ = strconv.Atoi(m[fieldReviewCount])
	h.UpdatedAt, _ = strconv.ParseInt(m[fieldUpdatedAt], 10, 64)
	h.EmbeddedAt, _ = strconv.ParseInt(m[fieldEmbeddedAt], 10, 64)
	if raw, ok := m[fieldVector]; ok {
		h.Embedding = bytesToVector(raw)
	}
	return h
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float,
// little-endian), the layout FT.SEARCH expects for FLOAT32 vector fields.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
