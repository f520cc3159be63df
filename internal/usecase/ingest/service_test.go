package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/review"
)

// --- Mocks ---

type mockWriter struct {
	mu      sync.Mutex
	batches [][]review.Review
	err     error
	ensured int
}

func (m *mockWriter) Upsert(_ context.Context, reviews []review.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, append([]review.Review(nil), reviews...))
	return nil
}

func (m *mockWriter) stored() int {
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type indexedWriter struct {
	mockWriter
	ensureErr error
}

func (m *indexedWriter) EnsureIndex(context.Context) error {
	m.ensured++
	return m.ensureErr
}

type mockBatchEmbedder struct {
	mu     sync.Mutex
	calls  int
	texts  []string
	err    error
	short  bool
	vector []float32
}

func (m *mockBatchEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("single embed not expected")
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, texts...)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, n), TotalTokens: 2 * len(texts)}
	for i := range out.Embeddings {
		out.Embeddings[i] = m.vector
	}
	return out, nil
}

type singleEmbedder struct {
	calls int
}

func (s *singleEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	s.calls++
	return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 1}, nil
}

func reviews(n int, withEmbedding func(i int) bool) []review.Review {
	out := make([]review.Review, n)
	for i := range out {
		var emb []float32
		if withEmbedding != nil && withEmbedding(i) {
			emb = []float32{0, 1}
		}
		out[i] = review.Reconstruct(fmt.Sprintf("%d", i), fmt.Sprintf("text %d", i), nil, nil, emb)
	}
	return out
}

// --- Tests ---

func TestIngest_EmbedsMissingOnly(t *testing.T) {
	w := &mockWriter{}
	emb := &mockBatchEmbedder{vector: []float32{1, 0}}
	svc := New(w, emb, 2, nil).WithBatchSize(4).WithConcurrency(2)

	docs := reviews(10, func(i int) bool { return i%2 == 0 })
	stats, err := svc.Ingest(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Total != 10 || stats.Embedded != 5 || stats.Batches != 3 || stats.Tokens != 10 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(emb.texts) != 5 {
		t.Errorf("expected 5 texts embedded, got %d", len(emb.texts))
	}
	if w.stored() != 10 {
		t.Errorf("expected 10 stored reviews, got %d", w.stored())
	}
	for _, d := range docs {
		if len(d.Embedding()) != 2 {
			t.Errorf("review %s left without embedding", d.ID())
		}
	}
}

func TestIngest_PrecomputedSkipsEmbedder(t *testing.T) {
	w := &mockWriter{}
	svc := New(w, nil, 2, nil)

	stats, err := svc.Ingest(context.Background(), reviews(3, func(int) bool { return true }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Embedded != 0 || stats.Batches != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestIngest_FallbackToSingleEmbed(t *testing.T) {
	emb := &singleEmbedder{}
	svc := New(&mockWriter{}, emb, 0, nil)

	if _, err := svc.Ingest(context.Background(), reviews(3, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 single embeds, got %d", emb.calls)
	}
}

func TestIngest_Errors(t *testing.T) {
	storeErr := errors.New("store down")
	tests := []struct {
		name    string
		writer  *mockWriter
		embed   Embedder
		dim     int
		docs    []review.Review
		wantErr error
	}{
		{"no embedder", &mockWriter{}, nil, 2, reviews(2, nil), nil},
		{"embed error", &mockWriter{}, &mockBatchEmbedder{err: domain.ErrRateLimited}, 2, reviews(2, nil), domain.ErrRateLimited},
		{"short batch", &mockWriter{}, &mockBatchEmbedder{short: true, vector: []float32{1, 0}}, 2, reviews(2, nil), domain.ErrEmbeddingProviderError},
		{"dim mismatch", &mockWriter{}, &mockBatchEmbedder{vector: []float32{1, 0, 0}}, 2, reviews(2, nil), domain.ErrVectorDimMismatch},
		{"precomputed dim mismatch", &mockWriter{}, nil, 3, reviews(1, func(int) bool { return true }), domain.ErrVectorDimMismatch},
		{"upsert error", &mockWriter{err: storeErr}, nil, 2, reviews(1, func(int) bool { return true }), storeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.writer, tt.embed, tt.dim, nil).Ingest(context.Background(), tt.docs)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIngest_Empty(t *testing.T) {
	w := &mockWriter{}
	stats, err := New(w, nil, 2, nil).Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Batches != 0 || len(w.batches) != 0 {
		t.Errorf("expected no writes, got %+v", stats)
	}
}

func TestEnsureIndex(t *testing.T) {
	w := &indexedWriter{}
	if err := New(w, nil, 2, nil).EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.ensured != 1 {
		t.Errorf("expected 1 EnsureIndex call, got %d", w.ensured)
	}

	w.ensureErr = errors.New("FT.CREATE failed")
	if err := New(w, nil, 2, nil).EnsureIndex(context.Background()); err == nil {
		t.Error("expected error")
	}

	if err := New(&mockWriter{}, nil, 2, nil).EnsureIndex(context.Background()); err != nil {
		t.Errorf("writer without index support: %v", err)
	}
}
