package domain

// HospitalAffiliation is a doctor's link to a hospital, carried as a
// summary rather than a join at response time.
type HospitalAffiliation struct {
	HospitalID string `json:"hospitalId"`
	Name       string `json:"name"`
	City       string `json:"city"`
}

// DoctorRecord is the doctor side of combined cross-entity search.
type DoctorRecord struct {
	ID                string
	FullName          string
	Specialties       []string
	YearsExperience   int
	Active            bool
	Verified          bool
	AcceptingPatients bool
	Affiliations      []HospitalAffiliation
}
