// Package bm25 scores a query against a small in-memory document set with Okapi BM25.
package bm25

import "math"

// Okapi BM25 defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Option tunes the index.
type Option func(*Index)

// WithParams overrides k1 and b.
func WithParams(k1, b float64) Option {
	return func(ix *Index) {
		ix.k1 = k1
		ix.b = b
	}
}

// Index is an immutable term-frequency index over a fixed document set.
// Build one per query; it is not meant to be shared or updated.
type Index struct {
	k1, b float64

	tf    []map[string]int
	lens  []int
	df    map[string]int
	avgdl float64
}

// New indexes pre-tokenized documents. Document order is preserved in Score.
func New(docs [][]string, opts ...Option) *Index {
	ix := &Index{
		k1:   DefaultK1,
		b:    DefaultB,
		tf:   make([]map[string]int, len(docs)),
		lens: make([]int, len(docs)),
		df:   make(map[string]int),
	}
	for _, o := range opts {
		o(ix)
	}

	total := 0
	for i, terms := range docs {
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		for t := range freq {
			ix.df[t]++
		}
		ix.tf[i] = freq
		ix.lens[i] = len(terms)
		total += len(terms)
	}
	if len(docs) > 0 {
		ix.avgdl = float64(total) / float64(len(docs))
	}
	return ix
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.tf) }

// IDF returns the inverse document frequency of term, floored at zero.
func (ix *Index) IDF(term string) float64 {
	n := float64(len(ix.tf))
	df := float64(ix.df[term])
	idf := math.Log(1 + (n-df+0.5)/(df+0.5))
	if idf < 0 {
		return 0
	}
	return idf
}

// Score returns one non-negative score per document, aligned with the input order.
// Repeated query terms contribute once per occurrence.
func (ix *Index) Score(query []string) []float64 {
	scores := make([]float64, len(ix.tf))
	if ix.avgdl == 0 {
		return scores
	}
	for _, term := range query {
		if ix.df[term] == 0 {
			continue
		}
		idf := ix.IDF(term)
		for i, freq := range ix.tf {
			f := float64(freq[term])
			if f == 0 {
				continue
			}
			norm := 1 - ix.b + ix.b*float64(ix.lens[i])/ix.avgdl
			scores[i] += idf * f * (ix.k1 + 1) / (f + ix.k1*norm)
		}
	}
	return scores
}
