package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
)

// DenseStage embeds the query and asks the vector store for its nearest reviews.
type DenseStage struct {
	embed        Embedder
	store        VectorStore
	dim          int
	embedTimeout time.Duration
	storeTimeout time.Duration
}

// DenseConfig wires a DenseStage. Dim 0 skips the dimension check;
// zero timeouts leave deadlines to the caller.
type DenseConfig struct {
	Embedder     Embedder
	Store        VectorStore
	Dim          int
	EmbedTimeout time.Duration
	StoreTimeout time.Duration
}

// NewDenseStage creates the dense stage.
func NewDenseStage(cfg DenseConfig) *DenseStage {
	return &DenseStage{
		embed:        cfg.Embedder,
		store:        cfg.Store,
		dim:          cfg.Dim,
		embedTimeout: cfg.EmbedTimeout,
		storeTimeout: cfg.StoreTimeout,
	}
}

// Search returns at most topK reviews by dense score desc, ties by id asc.
// Embedding failures wrap domain.ErrEmbeddingProviderError, store failures domain.ErrStore.
func (s *DenseStage) Search(
	ctx context.Context, query string, topK int, filters filter.Expression,
) ([]result.Result, error) {
	vec, err := s.vectorize(ctx, query)
	if err != nil {
		return nil, err
	}

	qctx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()
	hits, err := s.store.Query(qctx, vec, topK, filters)
	if err != nil {
		if errors.Is(err, domain.ErrStore) {
			return nil, fmt.Errorf("vector query: %w", err)
		}
		return nil, fmt.Errorf("vector query: %w: %w", domain.ErrStore, err)
	}

	results := make([]result.Result, len(hits))
	for i, h := range hits {
		results[i] = result.FromHit(h)
	}
	result.SortByScore(results, result.DenseKey)
	return result.Top(results, topK), nil
}

func (s *DenseStage) vectorize(ctx context.Context, query string) ([]float32, error) {
	ectx, cancel := withTimeout(ctx, s.embedTimeout)
	defer cancel()

	res, err := s.embed.Embed(ectx, query)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingProviderError) {
			return nil, fmt.Errorf("vectorize query: %w", err)
		}
		return nil, fmt.Errorf("vectorize query: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	if err := domain.CheckVector(res.Embedding, s.dim); err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	return res.Embedding, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
