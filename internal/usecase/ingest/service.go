// Package ingest loads review corpora into a vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/logger"
)

// Defaults for batching.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Stats summarizes one ingest run.
type Stats struct {
	Total    int
	Embedded int
	Tokens   int
	Batches  int
}

// Service embeds reviews that lack a vector and writes them in batches.
type Service struct {
	writer      Writer
	embed       Embedder
	dim         int
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// New creates an ingest service. embed may be nil when every review carries an embedding.
func New(writer Writer, embed Embedder, dim int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		writer:      writer,
		embed:       embed,
		dim:         dim,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// WithBatchSize sets the number of reviews per embed+upsert batch.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithConcurrency bounds the number of batches in flight.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// EnsureIndex creates the store index when the writer supports it.
func (s *Service) EnsureIndex(ctx context.Context) error {
	ie, ok := s.writer.(IndexEnsurer)
	if !ok {
		return nil
	}
	if err := ie.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// Ingest writes docs, storing computed embeddings back into the slice.
// The first failing batch cancels the rest.
func (s *Service) Ingest(ctx context.Context, docs []review.Review) (Stats, error) {
	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()

	var embedded, tokens, batches atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for from := 0; from < len(docs); from += s.batchSize {
		batch := docs[from:min(from+s.batchSize, len(docs))]
		offset := from
		g.Go(func() error {
			n, used, err := s.embedMissing(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch at %d: %w", offset, err)
			}
			if err := s.writer.Upsert(gctx, batch); err != nil {
				return fmt.Errorf("batch at %d: upsert: %w", offset, err)
			}
			embedded.Add(int64(n))
			tokens.Add(int64(used))
			batches.Add(1)
			return nil
		})
	}

	err := g.Wait()
	stats := Stats{
		Total:    len(docs),
		Embedded: int(embedded.Load()),
		Tokens:   int(tokens.Load()),
		Batches:  int(batches.Load()),
	}
	if err != nil {
		log.Error("Ingest failed", zap.Int("batches_done", stats.Batches), zap.Error(err))
		return stats, err
	}

	log.Info("Ingest completed",
		zap.Int("reviews", stats.Total),
		zap.Int("embedded", stats.Embedded),
		zap.Int("tokens", stats.Tokens),
		zap.Duration("duration", time.Since(start)),
	)
	return stats, nil
}

// embedMissing fills in embeddings in place and returns how many were computed.
func (s *Service) embedMissing(ctx context.Context, batch []review.Review) (int, int, error) {
	var idx []int
	var texts []string
	for i, d := range batch {
		if len(d.Embedding()) == 0 {
			idx = append(idx, i)
			texts = append(texts, d.Text())
			continue
		}
		if err := domain.CheckVector(d.Embedding(), s.dim); err != nil {
			return 0, 0, fmt.Errorf("review %s: %w", d.ID(), err)
		}
	}
	if len(idx) == 0 {
		return 0, 0, nil
	}
	if s.embed == nil {
		return 0, 0, errors.New("reviews without embeddings and no embedder configured")
	}

	var res domain.BatchEmbeddingResult
	var err error
	if be, ok := s.embed.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.embed, texts)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("embed: %w", err)
	}
	if len(res.Embeddings) != len(idx) {
		return 0, 0, fmt.Errorf("embed: got %d vectors for %d texts: %w",
			len(res.Embeddings), len(idx), domain.ErrEmbeddingProviderError)
	}

	for j, i := range idx {
		if err := domain.CheckVector(res.Embeddings[j], s.dim); err != nil {
			return 0, 0, fmt.Errorf("review %s: %w", batch[i].ID(), err)
		}
		batch[i] = batch[i].WithEmbedding(res.Embeddings[j])
	}
	return len(idx), res.TotalTokens, nil
}
