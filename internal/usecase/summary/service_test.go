package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/revdex/internal/domain"
	domret "github.com/kailas-cloud/revdex/internal/domain/retrieval"
	"github.com/kailas-cloud/revdex/internal/domain/review"
)

type mockModel struct {
	mu       sync.Mutex
	calls    int
	requests []domain.CompletionRequest
	fn       func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

func (m *mockModel) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, req)
	}
	return domain.Completion{Text: "summary"}, nil
}

func (m *mockModel) reduceRequests() []domain.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CompletionRequest
	for _, r := range m.requests {
		if r.SystemPrompt == reduceSystemPrompt {
			out = append(out, r)
		}
	}
	return out
}

// echoFirstID answers map calls with "chunk <first review id>" and reduce calls with "final".
func echoFirstID(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if req.SystemPrompt == reduceSystemPrompt {
		return domain.Completion{Text: "final"}, nil
	}
	start := strings.Index(req.UserPrompt, "[")
	end := strings.Index(req.UserPrompt, "]")
	return domain.Completion{Text: "chunk " + req.UserPrompt[start+1:end]}, nil
}

func docs(n int) []review.Review {
	out := make([]review.Review, n)
	for i := range out {
		out[i] = review.Reconstruct(fmt.Sprintf("r%d", i+1), fmt.Sprintf("review number %d", i+1), nil, nil, nil)
	}
	return out
}

func newService(t *testing.T, m *mockModel, cfg Config) *Service {
	t.Helper()
	s, err := New(m, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Release)
	return s
}

func TestSummarize_Empty(t *testing.T) {
	m := &mockModel{}
	s := newService(t, m, Config{})

	got := s.Summarize(context.Background(), nil, "q", 10)
	if got != domret.NoDataSummary {
		t.Errorf("got %q, want %q", got, domret.NoDataSummary)
	}
	if m.calls != 0 {
		t.Errorf("expected no model calls, got %d", m.calls)
	}
}

func TestSummarize_DirectPath(t *testing.T) {
	m := &mockModel{fn: func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: "  short summary \n"}, nil
	}}
	s := newService(t, m, Config{Temperature: 0.3, MaxTokens: 100})

	got := s.Summarize(context.Background(), docs(3), "smell", 10)
	if got != "short summary" {
		t.Errorf("got %q", got)
	}
	if m.calls != 1 {
		t.Fatalf("expected 1 call, got %d", m.calls)
	}
	req := m.requests[0]
	if req.SystemPrompt != summarizeSystemPrompt || req.MaxTokens != 100 || req.Temperature != 0.3 {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.UserPrompt, "Question: smell") || !strings.Contains(req.UserPrompt, "[r3] review number 3") {
		t.Errorf("prompt missing content: %q", req.UserPrompt)
	}
}

func TestSummarize_ChunkSizeBoundary(t *testing.T) {
	m := &mockModel{fn: echoFirstID}
	s := newService(t, m, Config{})

	s.Summarize(context.Background(), docs(4), "q", 4)
	if m.calls != 1 {
		t.Errorf("len == chunkSize: expected 1 call, got %d", m.calls)
	}
}

func TestSummarize_MapReduceCallCount(t *testing.T) {
	const c = 3
	m := &mockModel{fn: echoFirstID}
	s := newService(t, m, Config{})

	got := s.Summarize(context.Background(), docs(3*c+1), "q", c)
	if got != "final" {
		t.Errorf("got %q, want reduce output", got)
	}
	if m.calls != 5 {
		t.Errorf("expected 4 map + 1 reduce = 5 calls, got %d", m.calls)
	}

	reduces := m.reduceRequests()
	if len(reduces) != 1 {
		t.Fatalf("expected 1 reduce call, got %d", len(reduces))
	}
	want := "1. chunk r1\n2. chunk r4\n3. chunk r7\n4. chunk r10\n"
	if !strings.HasSuffix(reduces[0].UserPrompt, want) {
		t.Errorf("partials out of chunk order:\n%s", reduces[0].UserPrompt)
	}
}

func TestSummarize_FailedChunksDropped(t *testing.T) {
	m := &mockModel{fn: func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
		switch {
		case strings.Contains(req.UserPrompt, "[r3]"):
			return domain.Completion{}, domain.ErrModel
		case strings.Contains(req.UserPrompt, "[r5]"):
			return domain.Completion{Text: "   "}, nil
		}
		return echoFirstID(ctx, req)
	}}
	s := newService(t, m, Config{})

	got := s.Summarize(context.Background(), docs(8), "q", 2)
	if got != "final" {
		t.Errorf("got %q", got)
	}
	reduces := m.reduceRequests()
	if len(reduces) != 1 {
		t.Fatalf("expected 1 reduce call, got %d", len(reduces))
	}
	prompt := reduces[0].UserPrompt
	if strings.Contains(prompt, "chunk r3") || strings.Contains(prompt, "chunk r5") {
		t.Errorf("failed chunk reached reduce: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "1. chunk r1\n2. chunk r7\n") {
		t.Errorf("surviving chunk missing: %q", prompt)
	}
}

func TestSummarize_SingleSurvivorSkipsReduce(t *testing.T) {
	m := &mockModel{fn: func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
		if strings.Contains(req.UserPrompt, "[r1]") {
			return echoFirstID(ctx, req)
		}
		return domain.Completion{}, errors.New("boom")
	}}
	s := newService(t, m, Config{})

	got := s.Summarize(context.Background(), docs(5), "q", 2)
	if got != "chunk r1" {
		t.Errorf("got %q, want the single chunk summary unchanged", got)
	}
	if len(m.reduceRequests()) != 0 {
		t.Error("reduce must not run for a single survivor")
	}
	if m.calls != 3 {
		t.Errorf("expected 3 map calls, got %d", m.calls)
	}
}

func TestSummarize_Failures(t *testing.T) {
	tests := []struct {
		name string
		n    int
		fn   func(context.Context, domain.CompletionRequest) (domain.Completion, error)
	}{
		{"direct error", 2, func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
			return domain.Completion{}, domain.ErrModel
		}},
		{"direct empty", 2, func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
			return domain.Completion{}, nil
		}},
		{"all chunks fail", 6, func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
			return domain.Completion{}, domain.ErrModel
		}},
		{"reduce fails", 6, func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
			if req.SystemPrompt == reduceSystemPrompt {
				return domain.Completion{}, domain.ErrModel
			}
			return echoFirstID(ctx, req)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t, &mockModel{fn: tt.fn}, Config{})
			got := s.Summarize(context.Background(), docs(tt.n), "q", 2)
			if got != domret.SummaryFailed {
				t.Errorf("got %q, want %q", got, domret.SummaryFailed)
			}
		})
	}
}

func TestSummarize_CallTimeout(t *testing.T) {
	m := &mockModel{fn: func(ctx context.Context, _ domain.CompletionRequest) (domain.Completion, error) {
		<-ctx.Done()
		return domain.Completion{}, ctx.Err()
	}}
	s := newService(t, m, Config{CallTimeout: 10 * time.Millisecond})

	start := time.Now()
	got := s.Summarize(context.Background(), docs(2), "q", 10)
	if got != domret.SummaryFailed {
		t.Errorf("got %q", got)
	}
	if time.Since(start) > time.Second {
		t.Error("call timeout not applied")
	}
}

func TestSummarize_ChunkAttempts(t *testing.T) {
	var mu sync.Mutex
	failed := map[string]bool{}
	m := &mockModel{fn: func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
		if req.SystemPrompt == summarizeSystemPrompt {
			mu.Lock()
			first := !failed[req.UserPrompt]
			failed[req.UserPrompt] = true
			mu.Unlock()
			if first {
				return domain.Completion{}, domain.ErrModel
			}
		}
		return echoFirstID(ctx, req)
	}}
	s := newService(t, m, Config{ChunkAttempts: 2})

	got := s.Summarize(context.Background(), docs(4), "q", 2)
	if got != "final" {
		t.Errorf("got %q", got)
	}
	if m.calls != 5 {
		t.Errorf("expected 2x2 map attempts + 1 reduce, got %d", m.calls)
	}
}

func TestSummarize_CapsAndTruncates(t *testing.T) {
	m := &mockModel{}
	s := newService(t, m, Config{MaxDocsPerCall: 2, MaxTextChars: 6})

	s.Summarize(context.Background(), docs(3), "q", 10)
	prompt := m.requests[0].UserPrompt
	if strings.Contains(prompt, "[r3]") {
		t.Errorf("max docs per call not applied: %q", prompt)
	}
	if !strings.Contains(prompt, "[r1] review\n") {
		t.Errorf("text not truncated: %q", prompt)
	}
}

func TestNew_RequiresModel(t *testing.T) {
	if _, err := New(nil, Config{}, nil); err == nil {
		t.Error("expected error for nil model")
	}
}

func TestTruncate_Runes(t *testing.T) {
	if got := truncate("냄새가 좋아요", 3); got != "냄새가" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Errorf("got %q", got)
	}
}
