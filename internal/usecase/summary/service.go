// Package summary implements the two-level map-reduce review summarizer.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex/internal/domain"
	domret "github.com/kailas-cloud/revdex/internal/domain/retrieval"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/logger"
	"github.com/kailas-cloud/revdex/internal/metrics"
)

// Config holds summarizer limits.
type Config struct {
	MaxDocsPerCall int
	MaxTextChars   int
	MaxTokens      int
	Temperature    float64
	CallTimeout    time.Duration
	// ChunkAttempts is the number of tries per map chunk.
	ChunkAttempts int
	// Concurrency bounds in-flight map calls.
	Concurrency int
}

// DefaultConfig returns the baseline summarizer limits.
func DefaultConfig() Config {
	return Config{
		MaxDocsPerCall: 50,
		MaxTextChars:   500,
		MaxTokens:      512,
		Temperature:    0.2,
		CallTimeout:    30 * time.Second,
		ChunkAttempts:  1,
		Concurrency:    4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxDocsPerCall <= 0 {
		c.MaxDocsPerCall = d.MaxDocsPerCall
	}
	if c.MaxTextChars <= 0 {
		c.MaxTextChars = d.MaxTextChars
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.ChunkAttempts <= 0 {
		c.ChunkAttempts = d.ChunkAttempts
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}

var errEmptyOutput = errors.New("empty model output")

// Service summarizes retrieved reviews. It never fails: problems become sentinel text.
type Service struct {
	model  languageModel
	cfg    Config
	pool   *ants.Pool
	logger *zap.Logger
}

// New creates a summarizer with its own map worker pool. Call Release on shutdown.
func New(model languageModel, cfg Config, logger *zap.Logger) (*Service, error) {
	if model == nil {
		return nil, errors.New("language model is required")
	}
	cfg = cfg.withDefaults()
	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("summary worker pool: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{model: model, cfg: cfg, pool: pool, logger: logger}, nil
}

// Release stops the worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// Summarize returns a summary of docs for query. Inputs up to chunkSize go to
// the model in one call; larger inputs are summarized per contiguous chunk and
// the surviving chunk summaries are merged by one reduce call.
func (s *Service) Summarize(ctx context.Context, docs []review.Review, query string, chunkSize int) string {
	if len(docs) == 0 {
		return domret.NoDataSummary
	}
	if chunkSize <= 0 {
		chunkSize = domret.DefaultChunkSize
	}
	log := logger.FromContextOr(ctx, s.logger)

	if len(docs) <= chunkSize {
		out, err := s.complete(ctx, summarizeSystemPrompt, reviewsPrompt(query, s.capDocs(docs), s.cfg.MaxTextChars))
		if err != nil {
			log.Warn("Summary call failed", zap.Error(err))
			return domret.SummaryFailed
		}
		return out
	}

	partials := s.mapChunks(ctx, chunk(docs, chunkSize), query)
	switch len(partials) {
	case 0:
		log.Warn("All summary chunks failed")
		return domret.SummaryFailed
	case 1:
		return partials[0]
	}

	out, err := s.complete(ctx, reduceSystemPrompt, reducePrompt(query, partials))
	if err != nil {
		log.Warn("Summary reduce call failed", zap.Int("partials", len(partials)), zap.Error(err))
		return domret.SummaryFailed
	}
	return out
}

// mapChunks summarizes chunks on the worker pool and returns the successful
// outputs in chunk order.
func (s *Service) mapChunks(ctx context.Context, chunks [][]review.Review, query string) []string {
	log := logger.FromContextOr(ctx, s.logger)
	outputs := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, c := range chunks {
		task := func() {
			defer wg.Done()
			outputs[i], errs[i] = s.completeWithAttempts(ctx, reviewsPrompt(query, s.capDocs(c), s.cfg.MaxTextChars))
		}
		wg.Add(1)
		if err := s.pool.Submit(task); err != nil {
			// pool closed or overloaded: run in the caller goroutine
			task()
		}
	}
	wg.Wait()

	partials := make([]string, 0, len(chunks))
	for i, err := range errs {
		if err != nil {
			metrics.SummaryChunksTotal.WithLabelValues("failed").Inc()
			log.Warn("Summary chunk dropped", zap.Int("chunk", i), zap.Int("docs", len(chunks[i])), zap.Error(err))
			continue
		}
		metrics.SummaryChunksTotal.WithLabelValues("ok").Inc()
		partials = append(partials, outputs[i])
	}
	return partials
}

func (s *Service) completeWithAttempts(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for range s.cfg.ChunkAttempts {
		out, err := s.complete(ctx, summarizeSystemPrompt, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	res, err := s.model.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  s.cfg.Temperature,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrSummarizerTimeout) {
			return "", fmt.Errorf("%w: %w", domain.ErrSummarizerTimeout, err)
		}
		return "", fmt.Errorf("complete: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrModel, errEmptyOutput)
	}
	return text, nil
}

func (s *Service) capDocs(docs []review.Review) []review.Review {
	if len(docs) > s.cfg.MaxDocsPerCall {
		return docs[:s.cfg.MaxDocsPerCall]
	}
	return docs
}

// chunk splits docs into contiguous slices of at most size.
func chunk(docs []review.Review, size int) [][]review.Review {
	out := make([][]review.Review, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		out = append(out, docs[start:end])
	}
	return out
}
