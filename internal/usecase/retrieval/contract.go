// Package retrieval runs the hierarchical retrieval cascade:
// dense search, lexical re-rank, hybrid fusion and optional summarization.
package retrieval

import (
	"context"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
	"github.com/kailas-cloud/revdex/internal/text/tokenize"
)

// Embedder vectorizes the query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore answers nearest-neighbour queries under a metadata pre-filter.
// Hit similarity is 1 - cosine distance.
type VectorStore interface {
	Query(ctx context.Context, embedding []float32, topK int, filters filter.Expression) ([]review.Hit, error)
}

// TokenizerRegistry picks a tokenizer by channel, locale or name.
type TokenizerRegistry interface {
	Get(channelOrLocale string) tokenize.Tokenizer
	Lookup(name string) (tokenize.Tokenizer, error)
}

// DenseSearcher is the first stage.
type DenseSearcher interface {
	Search(ctx context.Context, query string, topK int, filters filter.Expression) ([]result.Result, error)
}

// LexicalReranker is the second stage.
type LexicalReranker interface {
	Rerank(docs []result.Result, query string, topK int, tok tokenize.Tokenizer) []result.Result
}

// HybridFuser is the third stage.
type HybridFuser interface {
	Fuse(docs []result.Result, query string, topK int, alpha float64, tok tokenize.Tokenizer) ([]result.Result, error)
}

// Summarizer condenses the final reviews. It never fails: failures come back
// as sentinel text.
type Summarizer interface {
	Summarize(ctx context.Context, docs []review.Review, query string, chunkSize int) string
}
