// Package search provides catalog search with a Meilisearch primary and a
// Postgres fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Year    int    `json:"year"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Kind   string // empty = both anime and manga
	Status string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a catalog search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// SeriesRecord is the data we index per series.
type SeriesRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	TitleEnglish string `json:"titleEnglish"`
	Synopsis     string `json:"synopsis"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	Year         int    `json:"year"`
}
