// Package memstore is a brute-force cosine vector store held in memory.
// Used for local runs, the library default and tests.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
)

// Store keeps reviews keyed by id. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	docs  map[string]review.Review
	order []string
	dim   int
}

// New creates an empty store. dim 0 accepts any vector length.
func New(dim int) *Store {
	return &Store{docs: make(map[string]review.Review), dim: dim}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored reviews.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Upsert inserts or replaces reviews. Every review must carry an embedding.
func (s *Store) Upsert(_ context.Context, reviews []review.Review) error {
	for _, rv := range reviews {
		if err := domain.CheckVector(rv.Embedding(), s.dim); err != nil {
			return fmt.Errorf("review %s: %w", rv.ID(), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rv := range reviews {
		if _, ok := s.docs[rv.ID()]; !ok {
			s.order = append(s.order, rv.ID())
		}
		s.docs[rv.ID()] = rv
	}
	return nil
}

// Query scans every review matching filters and returns the topK by cosine
// similarity, ties by id.
func (s *Store) Query(
	ctx context.Context, embedding []float32, topK int, filters filter.Expression,
) ([]review.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	qnorm := norm(embedding)

	s.mu.RLock()
	hits := make([]review.Hit, 0, len(s.docs))
	for _, id := range s.order {
		rv := s.docs[id]
		if !filters.Matches(rv.Tags(), rv.Numerics()) {
			continue
		}
		if len(rv.Embedding()) != len(embedding) {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: review %s has %d dims, query has %d",
				domain.ErrStore, id, len(rv.Embedding()), len(embedding))
		}
		hits = append(hits, review.Hit{Review: rv, Similarity: cosine(embedding, rv.Embedding(), qnorm)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return result.CompareIDs(hits[i].Review.ID(), hits[j].Review.ID()) < 0
	})
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 for zero vectors.
func cosine(q, d []float32, qnorm float64) float64 {
	dnorm := norm(d)
	if qnorm == 0 || dnorm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(d[i])
	}
	return dot / (qnorm * dnorm)
}
