package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/revdex/internal/db"
	"github.com/kailas-cloud/revdex/internal/domain"
	domreview "github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
)

// store is the consumer interface for the review index (ISP).
type store interface {
	Ping(ctx context.Context) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Schema lists the filterable metadata fields and the vector dimension.
type Schema struct {
	Tags     []string
	Numerics []string
	Dim      int
	HNSW     HNSWConfig
	// Flat builds an exact FLAT vector field instead of HNSW.
	Flat bool
}

// DefaultSchema is the review metadata layout.
func DefaultSchema(dim int) Schema {
	return Schema{
		Tags:     []string{"brand", "channel", "category", "product_id"},
		Numerics: []string{"rating", "date"},
		Dim:      dim,
		HNSW:     HNSWConfig{M: 16, EFConstruct: 200},
	}
}

func (s Schema) isTag(k string) bool     { return slices.Contains(s.Tags, k) }
func (s Schema) isNumeric(k string) bool { return slices.Contains(s.Numerics, k) }

// Repo stores reviews as hashes under <prefix><collection>:<id> and queries
// them through one FT index.
type Repo struct {
	store      store
	prefix     string
	collection string
	schema     Schema
}

// New creates a review repository. prefix is the global key prefix (e.g. "revdex:").
func New(s store, prefix, collection string, schema Schema) *Repo {
	return &Repo{store: s, prefix: prefix, collection: collection, schema: schema}
}

// KeyPrefix returns the hash key prefix of the collection.
func (r *Repo) KeyPrefix() string { return r.prefix + r.collection + ":" }

// IndexName returns the FT index name of the collection.
func (r *Repo) IndexName() string { return r.prefix + r.collection + ":idx" }

// Ping checks store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return nil
}

// Query returns the topK nearest reviews under filters, with cosine similarity.
func (r *Repo) Query(
	ctx context.Context, embedding []float32, topK int, filters filter.Expression,
) ([]domreview.Hit, error) {
	if err := r.checkFilters(filters); err != nil {
		return nil, err
	}

	returnFields := make([]string, 0, 1+len(r.schema.Tags)+len(r.schema.Numerics))
	returnFields = append(returnFields, fieldContent)
	returnFields = append(returnFields, r.schema.Tags...)
	returnFields = append(returnFields, r.schema.Numerics...)

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(),
		VectorField:  fieldVector,
		Filters:      filters,
		Vector:       embedding,
		K:            topK,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", domain.ErrStore, r.collection, err)
	}
	if sr == nil {
		return nil, nil
	}

	prefix := r.KeyPrefix()
	hits := make([]domreview.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := strings.TrimPrefix(e.Key, prefix)
		hits = append(hits, domreview.Hit{
			Review:     r.schema.parseHashFields(id, e.Fields),
			Similarity: e.Score,
		})
	}
	return hits, nil
}

// checkFilters rejects predicates on fields the index does not carry.
func (r *Repo) checkFilters(filters filter.Expression) error {
	for _, c := range filters.Conditions() {
		switch {
		case c.IsMatch() && !r.schema.isTag(c.Key()):
			return fmt.Errorf("%w: %q is not an indexed tag field", domain.ErrStore, c.Key())
		case c.IsRange() && !r.schema.isNumeric(c.Key()):
			return fmt.Errorf("%w: %q is not an indexed numeric field", domain.ErrStore, c.Key())
		}
	}
	return nil
}

// Upsert writes reviews with their embeddings in one pipelined round-trip.
func (r *Repo) Upsert(ctx context.Context, reviews []domreview.Review) error {
	items := make([]db.HashSetItem, 0, len(reviews))
	for _, rv := range reviews {
		if err := domain.CheckVector(rv.Embedding(), r.schema.Dim); err != nil {
			return fmt.Errorf("review %s: %w", rv.ID(), err)
		}
		items = append(items, db.HashSetItem{
			Key:    r.KeyPrefix() + rv.ID(),
			Fields: buildHashFields(rv),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert %d reviews: %w", domain.ErrStore, len(items), err)
	}
	return nil
}

// EnsureIndex creates the FT index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("%w: probe index: %w", domain.ErrStore, err)
	}
	if exists {
		return nil
	}

	b := db.NewIndex(r.IndexName()).
		Prefix(r.KeyPrefix()).
		Tag(r.schema.Tags...).
		Numeric(r.schema.Numerics...)
	if r.schema.Flat {
		b = b.VectorFlat(fieldVector, r.schema.Dim, db.DistanceCosine)
	} else {
		b = b.VectorHNSW(fieldVector, r.schema.Dim, db.DistanceCosine, r.schema.HNSW.M, r.schema.HNSW.EFConstruct)
	}
	def, err := b.Build()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: create index: %w", domain.ErrStore, err)
	}
	return nil
}
