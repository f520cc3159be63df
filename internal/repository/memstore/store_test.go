package memstore

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
)

func rv(id, brand string, rating float64, emb ...float32) review.Review {
	return review.Reconstruct(id, "text "+id,
		map[string]string{"brand": brand},
		map[string]float64{"rating": rating}, emb)
}

func seed(t *testing.T) *Store {
	t.Helper()
	s := New(2)
	err := s.Upsert(context.Background(), []review.Review{
		rv("10", "acme", 5, 1, 0),
		rv("2", "acme", 3, 1, 0),
		rv("3", "other", 4, 0, 1),
		rv("4", "acme", 4, 1, 1),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func ids(hits []review.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Review.ID()
	}
	return out
}

func TestQuery_OrderAndTieBreak(t *testing.T) {
	s := seed(t)

	hits, err := s.Query(context.Background(), []float32{1, 0}, 10, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ids(hits)
	want := []string{"2", "10", "4", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if math.Abs(hits[2].Similarity-1/math.Sqrt2) > 1e-9 {
		t.Errorf("similarity = %v", hits[2].Similarity)
	}
	if hits[3].Similarity != 0 {
		t.Errorf("orthogonal similarity = %v", hits[3].Similarity)
	}
}

func TestQuery_TopKAndFilters(t *testing.T) {
	s := seed(t)

	brand, _ := filter.NewMatch("brand", "acme")
	four := 4.0
	r, _ := filter.NewRangeFilter(nil, &four, nil, nil)
	rating, _ := filter.NewRange("rating", r)
	expr, _ := filter.NewExpression(brand, rating)

	hits, err := s.Query(context.Background(), []float32{1, 0}, 1, expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Review.ID() != "10" {
		t.Errorf("hits = %v", ids(hits))
	}
}

func TestQuery_FewerThanTopK(t *testing.T) {
	s := seed(t)
	hits, _ := s.Query(context.Background(), []float32{1, 0}, 100, filter.Expression{})
	if len(hits) != 4 {
		t.Errorf("expected all 4 reviews without padding, got %d", len(hits))
	}
}

func TestQuery_DimensionMismatch(t *testing.T) {
	s := seed(t)
	_, err := s.Query(context.Background(), []float32{1, 0, 0}, 5, filter.Expression{})
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}

func TestQuery_CanceledContext(t *testing.T) {
	s := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Query(ctx, []float32{1, 0}, 5, filter.Expression{}); !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}

func TestUpsert_ReplacesAndValidates(t *testing.T) {
	s := seed(t)
	if err := s.Upsert(context.Background(), []review.Review{rv("3", "acme", 1, 1, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}

	err := s.Upsert(context.Background(), []review.Review{rv("9", "acme", 1)})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected vector error for missing embedding, got %v", err)
	}
}
