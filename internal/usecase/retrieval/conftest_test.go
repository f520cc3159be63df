package retrieval

import (
	"context"
	"testing"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
	"github.com/kailas-cloud/revdex/internal/text/tokenize"
)

type mockEmbedder struct {
	vec   []float32
	err   error
	block bool
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.block {
		<-ctx.Done()
		return domain.EmbeddingResult{}, ctx.Err()
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

// mockStore returns the first topK hits in the order given.
type mockStore struct {
	hits        []review.Hit
	err         error
	calls       int
	lastTopK    int
	lastFilters filter.Expression
}

func (m *mockStore) Query(_ context.Context, _ []float32, topK int, f filter.Expression) ([]review.Hit, error) {
	m.calls++
	m.lastTopK = topK
	m.lastFilters = f
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > topK {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}

type countingReranker struct {
	inner *LexicalStage
	calls int
}

func (c *countingReranker) Rerank(docs []result.Result, q string, k int, tok tokenize.Tokenizer) []result.Result {
	c.calls++
	return c.inner.Rerank(docs, q, k, tok)
}

type countingTokenizer struct {
	tokenize.Tokenizer
	calls int
}

func (c *countingTokenizer) Tokenize(text string) []string {
	c.calls++
	return c.Tokenizer.Tokenize(text)
}

type mockSummarizer struct {
	out       string
	calls     int
	docs      []review.Review
	chunkSize int
}

func (m *mockSummarizer) Summarize(_ context.Context, docs []review.Review, _ string, chunkSize int) string {
	m.calls++
	m.docs = docs
	m.chunkSize = chunkSize
	return m.out
}

type recordingRegistry struct {
	*tokenize.Registry
	gets    []string
	lookups []string
}

func (r *recordingRegistry) Get(key string) tokenize.Tokenizer {
	r.gets = append(r.gets, key)
	return r.Registry.Get(key)
}

func (r *recordingRegistry) Lookup(name string) (tokenize.Tokenizer, error) {
	r.lookups = append(r.lookups, name)
	return r.Registry.Lookup(name) //nolint:wrapcheck // test double
}

func newRegistry(t *testing.T) *recordingRegistry {
	t.Helper()
	reg, err := tokenize.NewRegistry(tokenize.Unicode, map[string]string{"naver": tokenize.CJKBigram}, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return &recordingRegistry{Registry: reg}
}

func unicodeTokenizer(t *testing.T) tokenize.Tokenizer {
	t.Helper()
	tok, ok := tokenize.New(tokenize.Unicode, nil)
	if !ok {
		t.Fatal("unicode tokenizer missing")
	}
	return tok
}

func rv(id, text string, tags map[string]string) review.Review {
	return review.Reconstruct(id, text, tags, nil, nil)
}

func hit(id, text string, sim float64) review.Hit {
	return review.Hit{Review: rv(id, text, nil), Similarity: sim}
}

// scored builds a result with explicit scores; a negative lexical means absent.
func scored(id, text string, dense, lexical float64) result.Result {
	r := result.New(rv(id, text, nil)).WithDense(dense)
	if lexical >= 0 {
		r = r.WithLexical(lexical)
	}
	return r
}

func ids(results []result.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID()
	}
	return out
}
