// Package specialty maps query keywords to medical specialties for
// cross-entity search. The table is an immutable lookup loaded once at
// process start; inference is a pure scan over it.
package specialty

import "strings"

// Mapping associates one query keyword with the specialties it implies.
type Mapping struct {
	Keyword     string
	Specialties []string
}

// Table is the static keyword to specialty mapping, scanned in order.
var Table = []Mapping{
	{"heart", []string{"Cardiology", "Cardiothoracic Surgery"}},
	{"cardiac", []string{"Cardiology", "Cardiothoracic Surgery"}},
	{"stroke", []string{"Neurology", "Neurosurgery"}},
	{"brain", []string{"Neurology", "Neurosurgery"}},
	{"neuro", []string{"Neurology", "Neurosurgery"}},
	{"cancer", []string{"Oncology", "Radiation Oncology"}},
	{"tumor", []string{"Oncology", "Radiation Oncology"}},
	{"bone", []string{"Orthopedics"}},
	{"joint", []string{"Orthopedics"}},
	{"fracture", []string{"Orthopedics", "Emergency Medicine"}},
	{"skin", []string{"Dermatology"}},
	{"child", []string{"Pediatrics"}},
	{"pediatric", []string{"Pediatrics"}},
	{"pregnancy", []string{"Obstetrics", "Gynecology"}},
	{"birth", []string{"Obstetrics"}},
	{"kidney", []string{"Nephrology", "Urology"}},
	{"liver", []string{"Hepatology", "Gastroenterology"}},
	{"stomach", []string{"Gastroenterology"}},
	{"lung", []string{"Pulmonology"}},
	{"breathing", []string{"Pulmonology"}},
	{"mental", []string{"Psychiatry"}},
	{"depression", []string{"Psychiatry"}},
	{"anxiety", []string{"Psychiatry"}},
	{"rehabilitation", []string{"Physical Medicine", "Physical Therapy"}},
	{"physical therapy", []string{"Physical Therapy"}},
	{"therapy", []string{"Physical Therapy"}},
	{"eye", []string{"Ophthalmology"}},
	{"vision", []string{"Ophthalmology"}},
	{"dental", []string{"Dentistry", "Oral Surgery"}},
	{"trauma", []string{"Emergency Medicine", "Trauma Surgery"}},
	{"emergency", []string{"Emergency Medicine"}},
	{"diabetes", []string{"Endocrinology"}},
	{"hormone", []string{"Endocrinology"}},
}

// Infer scans the table for keywords contained in the lower-cased query and
// unions all matched specialty lists, deduplicated, in table order.
func Infer(query string) []string {
	q := strings.ToLower(query)
	seen := make(map[string]struct{})
	var out []string
	for _, m := range Table {
		if !strings.Contains(q, m.Keyword) {
			continue
		}
		for _, s := range m.Specialties {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Keywords returns the keyword column, used as the recall vocabulary for
// the lexical fallback pass.
func Keywords() []string {
	out := make([]string, len(Table))
	for i, m := range Table {
		out[i] = m.Keyword
	}
	return out
}
