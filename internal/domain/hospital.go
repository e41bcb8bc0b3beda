package domain

import (
	"fmt"
	"strings"
)

// VectorDimensions is the schema-declared embedding dimensionality.
// Every stored vector is coerced to this length regardless of the
// provider's native output size.
const VectorDimensions = 1536

// HospitalType is the closed enumeration of hospital categories.
type HospitalType string

// Hospital categories.
const (
	TypeGeneral        HospitalType = "general"
	TypeSpecialty      HospitalType = "specialty"
	TypeTeaching       HospitalType = "teaching"
	TypeClinic         HospitalType = "clinic"
	TypeUrgentCare     HospitalType = "urgent_care"
	TypeRehabilitation HospitalType = "rehabilitation"
	TypePsychiatric    HospitalType = "psychiatric"
	TypeChildrens      HospitalType = "childrens"
	TypeMaternity      HospitalType = "maternity"
	TypeMilitary       HospitalType = "military"
	TypeVeterans       HospitalType = "veterans"
)

var hospitalTypes = map[HospitalType]struct{}{
	TypeGeneral: {}, TypeSpecialty: {}, TypeTeaching: {}, TypeClinic: {},
	TypeUrgentCare: {}, TypeRehabilitation: {}, TypePsychiatric: {},
	TypeChildrens: {}, TypeMaternity: {}, TypeMilitary: {}, TypeVeterans: {},
}

// ParseHospitalType validates a raw type string against the closed enumeration.
func ParseHospitalType(s string) (HospitalType, error) {
	t := HospitalType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := hospitalTypes[t]; !ok {
		return "", fmt.Errorf("unknown hospital type %q: %w", s, ErrInvalidInput)
	}
	return t, nil
}

// HospitalRecord is the unit indexed and searched.
type HospitalRecord struct {
	ID                string
	Name              string
	Description       string
	Type              HospitalType
	City              string
	State             string
	TraumaLevel       string // empty means none
	EmergencyServices bool
	Active            bool
	Verified          bool
	Featured          bool
	Rating            float64
	ReviewCount       int

	// Embedding state. A nil Embedding means the hospital has not been
	// indexed. EmbeddedAt < UpdatedAt means the stored vector predates
	// the current field values and the record is eligible for reindex.
	Embedding         []float32
	EmbeddingProvider string
	EmbeddedAt        int64 // unix milli, 0 = never embedded
	UpdatedAt         int64 // unix milli
}

// HasEmbedding reports whether a vector is stored for this record.
func (h *HospitalRecord) HasEmbedding() bool { return len(h.Embedding) > 0 }

// EmbeddingStale reports whether the stored vector predates the record's
// current field values.
func (h *HospitalRecord) EmbeddingStale() bool {
	return h.HasEmbedding() && h.EmbeddedAt < h.UpdatedAt
}

// EmbeddingText renders the record into the exact string that gets embedded.
// The template is fixed: two calls with identical field values produce
// byte-identical output, which is what makes staleness detection and
// reindexing meaningful.
func (h *HospitalRecord) EmbeddingText() string {
	trauma := h.TraumaLevel
	if trauma == "" {
		trauma = "None"
	}
	emergency := "Not Available"
	if h.EmergencyServices {
		emergency = "Available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hospital: %s\n", h.Name)
	fmt.Fprintf(&b, "Description: %s\n", h.Description)
	fmt.Fprintf(&b, "Type: %s\n", h.Type)
	fmt.Fprintf(&b, "Location: %s, %s\n", h.City, h.State)
	fmt.Fprintf(&b, "Trauma Level: %s\n", trauma)
	fmt.Fprintf(&b, "Emergency Services: %s", emergency)
	return b.String()
}
