package specialty

import (
	"reflect"
	"testing"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "single keyword",
			query: "best heart surgeons",
			want:  []string{"Cardiology", "Cardiothoracic Surgery"},
		},
		{
			name:  "case insensitive",
			query: "HEART Problems",
			want:  []string{"Cardiology", "Cardiothoracic Surgery"},
		},
		{
			name:  "keyword as substring",
			query: "pediatrics department",
			want:  []string{"Pediatrics"},
		},
		{
			name:  "overlapping keywords deduplicate",
			query: "heart and cardiac care",
			want:  []string{"Cardiology", "Cardiothoracic Surgery"},
		},
		{
			name:  "multiple distinct keywords union in table order",
			query: "stroke after a heart attack",
			want:  []string{"Cardiology", "Cardiothoracic Surgery", "Neurology", "Neurosurgery"},
		},
		{
			name:  "shared specialty listed once",
			query: "trauma from a fracture",
			want:  []string{"Orthopedics", "Emergency Medicine", "Trauma Surgery"},
		},
		{
			name:  "no match",
			query: "parking availability",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Infer(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Infer(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestKeywords(t *testing.T) {
	kws := Keywords()
	if len(kws) != len(Table) {
		t.Fatalf("expected %d keywords, got %d", len(Table), len(kws))
	}
	if kws[0] != Table[0].Keyword {
		t.Errorf("expected first keyword %q, got %q", Table[0].Keyword, kws[0])
	}
	seen := make(map[string]struct{}, len(kws))
	for _, k := range kws {
		if _, dup := seen[k]; dup {
			t.Errorf("duplicate keyword %q", k)
		}
		seen[k] = struct{}{}
	}
}
