package doctor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/careatlas/caresearch/internal/domain"
)

const (
	fieldFullName     = "full_name"
	fieldSpecialties  = "specialties"
	fieldExperience   = "years_experience"
	fieldActive       = "active"
	fieldVerified     = "verified"
	fieldAccepting    = "accepting"
	fieldAffiliations = "affiliations"
)

// specialtySep separates specialty values inside the tag field. "|" is the
// configured TAG separator in the FT index.
const specialtySep = "|"

func buildHashFields(d *domain.DoctorRecord) map[string]string {
	m := map[string]string{
		fieldFullName:    d.FullName,
		fieldSpecialties: strings.Join(d.Specialties, specialtySep),
		fieldExperience:  strconv.Itoa(d.YearsExperience),
		fieldActive:      boolTag(d.Active),
		fieldVerified:    boolTag(d.Verified),
		fieldAccepting:   boolTag(d.AcceptingPatients),
	}
	if len(d.Affiliations) > 0 {
		if raw, err := json.Marshal(d.Affiliations); err == nil {
			m[fieldAffiliations] = string(raw)
		}
	}
	return m
}

func parseHashFields(id string, m map[string]string) domain.DoctorRecord {
	d := domain.DoctorRecord{
		ID:                id,
		FullName:          m[fieldFullName],
		Active:            m[fieldActive] == "1",
		Verified:          m[fieldVerified] == "1",
		AcceptingPatients: m[fieldAccepting] == "1",
	}
	if s := m[fieldSpecialties]; s != "" {
		d.Specialties = strings.Split(s, specialtySep)
	}
	d.YearsExperience, _ = strconv.Atoi(m[fieldExperience])
	if raw := m[fieldAffiliations]; raw != "" {
		// Affiliation parse failures leave the summary empty rather than
		// failing the whole record.
		_ = json.Unmarshal([]byte(raw), &d.Affiliations)
	}
	return d
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
