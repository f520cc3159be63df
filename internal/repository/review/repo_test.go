package review

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/revdex/internal/db"
	"github.com/kailas-cloud/revdex/internal/domain"
	domreview "github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
)

func TestQuery_ParsesHits(t *testing.T) {
	repo, ms := newTestRepo(t)

	var captured *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		captured = q
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{{
				Key:   "revdex:reviews:42",
				Score: 0.87,
				Fields: map[string]string{
					"__content":  "good texture",
					"brand":      "acme",
					"product_id": "1001",
					"rating":     "4.5",
					"date":       "1700000000",
				},
			}},
		}, nil
	}

	brand, _ := filter.NewMatch("brand", "acme")
	hits, err := repo.Query(context.Background(), testVector(), 5, mustExpression(t, brand))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.IndexName != "revdex:reviews:idx" || captured.K != 5 || captured.VectorField != "__vector" {
		t.Errorf("unexpected query: %+v", captured)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.Review.ID() != "42" || h.Similarity != 0.87 || h.Review.Text() != "good texture" {
		t.Errorf("unexpected hit: %+v", h)
	}
	// product_id is a tag even though it looks numeric
	if h.Review.Tags()["product_id"] != "1001" {
		t.Errorf("product_id = %q", h.Review.Tags()["product_id"])
	}
	if h.Review.Numerics()["rating"] != 4.5 || h.Review.Numerics()["date"] != 1700000000 {
		t.Errorf("numerics = %v", h.Review.Numerics())
	}
}

func TestQuery_StoreErrorWrapped(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("connection reset")}
	}

	_, err := repo.Query(context.Background(), testVector(), 5, filter.Expression{})
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Errorf("db.Error must stay reachable: %v", err)
	}
}

func TestQuery_RejectsUnindexedFilter(t *testing.T) {
	repo, ms := newTestRepo(t)
	called := false
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		called = true
		return &db.SearchResult{}, nil
	}

	color, _ := filter.NewMatch("color", "red")
	_, err := repo.Query(context.Background(), testVector(), 5, mustExpression(t, color))
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}

	// a tag used as a numeric range is malformed too
	one := 1.0
	rng, _ := filter.NewRangeFilter(nil, &one, nil, nil)
	brandRange, _ := filter.NewRange("brand", rng)
	_, err = repo.Query(context.Background(), testVector(), 5, mustExpression(t, brandRange))
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore for numeric range on tag, got %v", err)
	}
	if called {
		t.Error("store must not be queried with a malformed filter")
	}
}

func TestUpsert(t *testing.T) {
	repo, ms := newTestRepo(t)

	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, in []db.HashSetItem) error {
		items = in
		return nil
	}

	rv := domreview.Reconstruct("7", "bad smell",
		map[string]string{"channel": "naver"},
		map[string]float64{"rating": 2}, testVector())
	if err := repo.Upsert(context.Background(), []domreview.Review{rv}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 1 || items[0].Key != "revdex:reviews:7" {
		t.Fatalf("unexpected items: %+v", items)
	}
	f := items[0].Fields
	if f["__content"] != "bad smell" || f["channel"] != "naver" || f["rating"] != "2" {
		t.Errorf("unexpected fields: %v", f)
	}
	if len(f["__vector"]) != 16 {
		t.Errorf("vector blob length = %d, want 16", len(f["__vector"]))
	}
}

func TestUpsert_RejectsWrongDimension(t *testing.T) {
	repo, _ := newTestRepo(t)
	rv := domreview.Reconstruct("7", "text", nil, nil, []float32{1, 2})

	err := repo.Upsert(context.Background(), []domreview.Review{rv})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestEnsureIndex_Creates(t *testing.T) {
	repo, ms := newTestRepo(t)

	var def *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, d *db.IndexDefinition) error {
		def = d
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def == nil {
		t.Fatal("expected CreateIndex call")
	}
	if def.Name != "revdex:reviews:idx" || def.Prefixes[0] != "revdex:reviews:" {
		t.Errorf("unexpected def: %s", def)
	}
	// 4 tags + 2 numerics + vector
	if len(def.Fields) != 7 {
		t.Errorf("fields = %d, want 7", len(def.Fields))
	}
}

func TestEnsureIndex_Flat(t *testing.T) {
	schema := DefaultSchema(4)
	schema.Flat = true
	ms := &mockStore{}
	repo := New(ms, "revdex:", "reviews", schema)

	var def *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, d *db.IndexDefinition) error {
		def = d
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := def.Fields[len(def.Fields)-1]
	if v.VectorAlgo != db.VectorFlat || v.VectorDim != 4 {
		t.Errorf("vector field = %+v, want FLAT dim 4", v)
	}
}

func TestEnsureIndex_Existing(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return true, nil }
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		t.Fatal("CreateIndex must not be called for an existing index")
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RaceTolerated(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists }

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("ErrIndexExists must be tolerated: %v", err)
	}
}

func TestPing_WrapsStoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.pingFn = func(context.Context) error { return errors.New("dial tcp: refused") }

	if err := repo.Ping(context.Background()); !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}
