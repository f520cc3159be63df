package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex/internal/domain"
)

type mockModel struct {
	out   domain.Completion
	err   error
	calls int
}

func (m *mockModel) Complete(_ context.Context, _ domain.CompletionRequest) (domain.Completion, error) {
	m.calls++
	return m.out, m.err
}

func TestInstrumentedModel_RecordsUsage(t *testing.T) {
	inner := &mockModel{out: domain.Completion{Text: "ok", PromptTokens: 10, CompletionTokens: 5}}
	m := NewInstrumentedModel(inner, "test", 0, 0, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	for range 2 {
		if _, err := m.Complete(ctx, domain.CompletionRequest{UserPrompt: "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	calls, tokens := usage.ModelUsage()
	if calls != 2 || tokens != 30 {
		t.Errorf("usage = %d calls / %d tokens, want 2 / 30", calls, tokens)
	}
}

func TestInstrumentedModel_PropagatesErrors(t *testing.T) {
	inner := &mockModel{err: domain.ErrSummarizerTimeout}
	m := NewInstrumentedModel(inner, "test", 0, 0, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	_, err := m.Complete(ctx, domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrSummarizerTimeout) {
		t.Errorf("expected ErrSummarizerTimeout, got %v", err)
	}
	if calls, _ := usage.ModelUsage(); calls != 0 {
		t.Errorf("failed call must not be counted, got %d", calls)
	}
}

func TestInstrumentedModel_RateLimited(t *testing.T) {
	inner := &mockModel{out: domain.Completion{Text: "ok"}}
	// один токен в час: второй вызов не дождётся до дедлайна
	m := NewInstrumentedModel(inner, "test", 1.0/3600, 1, zap.NewNop())

	if _, err := m.Complete(context.Background(), domain.CompletionRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.Complete(ctx, domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("limited call must not reach the model, calls = %d", inner.calls)
	}
}
