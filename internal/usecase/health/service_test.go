package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct {
	err   error
	block bool
}

func (m *mockChecker) HealthCheck(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockChecker{}, &mockChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentStore, ComponentEmbedding, ComponentLLM} {
		if r.Checks[c] != CheckOK {
			t.Errorf("expected %s %q, got %q", c, CheckOK, r.Checks[c])
		}
	}
}

func TestCheck_StoreError(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("conn refused")}, &mockChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentStore] != CheckError {
		t.Errorf("expected store %q, got %q", CheckError, r.Checks[ComponentStore])
	}
	if r.Checks[ComponentEmbedding] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks[ComponentEmbedding])
	}
}

func TestCheck_ProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		embedding *mockChecker
		llm       *mockChecker
		failed    string
	}{
		{"embedding", &mockChecker{err: errors.New("timeout")}, &mockChecker{}, ComponentEmbedding},
		{"llm", &mockChecker{}, &mockChecker{err: errors.New("401")}, ComponentLLM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&mockStorePinger{}, tt.embedding, tt.llm).Check(context.Background())

			if r.Status != Degraded {
				t.Errorf("expected %q, got %q", Degraded, r.Status)
			}
			if r.Checks[tt.failed] != CheckError {
				t.Errorf("expected %s error, got %q", tt.failed, r.Checks[tt.failed])
			}
			if r.Checks[ComponentStore] != CheckOK {
				t.Errorf("expected store ok, got %q", r.Checks[ComponentStore])
			}
		})
	}
}

func TestCheck_OptionalComponentsAbsent(t *testing.T) {
	r := New(&mockStorePinger{}, nil, nil).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks[ComponentEmbedding]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
	if _, ok := r.Checks[ComponentLLM]; ok {
		t.Error("llm check should be absent when llm is nil")
	}
}

func TestCheck_Timeout(t *testing.T) {
	svc := New(&mockStorePinger{}, nil, &mockChecker{block: true}).WithTimeout(10 * time.Millisecond)

	start := time.Now()
	r := svc.Check(context.Background())

	if time.Since(start) > time.Second {
		t.Error("check timeout not applied")
	}
	if r.Checks[ComponentLLM] != CheckError {
		t.Errorf("expected llm error on timeout, got %q", r.Checks[ComponentLLM])
	}
	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
}
