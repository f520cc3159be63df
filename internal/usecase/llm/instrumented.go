// Package llm decorates language models with rate limiting, usage accounting and logging.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/revdex/internal/domain"
)

// InstrumentedModel wraps a domain.LanguageModel.
type InstrumentedModel struct {
	inner   domain.LanguageModel
	limiter *rate.Limiter
	model   string
	logger  *zap.Logger
}

// NewInstrumentedModel wraps inner. rps <= 0 disables rate limiting; burst
// defaults to 1.
func NewInstrumentedModel(
	inner domain.LanguageModel, model string, rps float64, burst int, logger *zap.Logger,
) *InstrumentedModel {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
	return &InstrumentedModel{inner: inner, limiter: limiter, model: model, logger: logger}
}

// Complete waits for a limiter token, then delegates.
// A wait that cannot finish before the context deadline fails with domain.ErrRateLimited.
func (m *InstrumentedModel) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			m.logger.Warn("Language model rate limited", zap.String("model", m.model), zap.Error(err))
			return domain.Completion{}, fmt.Errorf("llm limiter: %w: %w", domain.ErrRateLimited, err)
		}
	}

	start := time.Now()
	out, err := m.inner.Complete(ctx, req)
	duration := time.Since(start)
	if err != nil {
		level := m.logger.Error
		if errors.Is(err, domain.ErrSummarizerTimeout) {
			level = m.logger.Warn
		}
		level("Language model call failed",
			zap.String("model", m.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, fmt.Errorf("complete: %w", err)
	}

	domain.UsageFromContext(ctx).AddModelCall(out.TotalTokens())

	m.logger.Debug("Language model call completed",
		zap.String("model", m.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
	)
	return out, nil
}

// HealthCheck delegates when the inner model supports it.
func (m *InstrumentedModel) HealthCheck(ctx context.Context) error {
	if hc, ok := m.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
