package db

// KNNQuery is the input for vector similarity search. Filter is a
// pre-rendered FT.SEARCH pre-filter expression produced by the repository
// layer (empty means match all).
type KNNQuery struct {
	IndexName    string
	Filter       string
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for lexical full-text search.
type TextQuery struct {
	IndexName    string
	Query        string // FT.SEARCH text expression, already escaped
	Filter       string
	TopK         int
	SortBy       string // optional NUMERIC field to sort on
	SortDesc     bool
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single record hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
