package db

import "github.com/kailas-cloud/revdex/internal/domain/search/filter"

// DefaultVectorField is the hash field holding the FLOAT32 embedding blob.
const DefaultVectorField = "__vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	// VectorField defaults to DefaultVectorField.
	VectorField  string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is cosine similarity (1 - distance).
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
