package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// Usage collects token consumption for a single retrieval.
// The handler puts a pointer into the context before calling the pipeline;
// embedders and language models write to it; the handler reads it for response headers.
// Summarizer map calls run concurrently, so writes are guarded.
type Usage struct {
	mu              sync.Mutex
	embeddingTokens int
	embedded        bool
	modelCalls      int
	modelTokens     int
}

// NewContextWithUsage returns a context with an attached usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records an embedding call; a cache hit records zero tokens.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.embeddingTokens += n
	u.embedded = true
	u.mu.Unlock()
}

// AddModelCall records one language model call and its tokens.
func (u *Usage) AddModelCall(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.modelCalls++
	u.modelTokens += tokens
	u.mu.Unlock()
}

// EmbeddingTokens returns the embedding tokens and whether an embedder was called at all.
func (u *Usage) EmbeddingTokens() (int, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddingTokens, u.embedded
}

// ModelUsage returns the number of language model calls and their total tokens.
func (u *Usage) ModelUsage() (calls, tokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.modelCalls, u.modelTokens
}
