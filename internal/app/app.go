// Package app is the composition root shared by the server, the CLI and the
// library facade: it turns a config.Config into a wired retrieval pipeline.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex/internal/config"
	"github.com/kailas-cloud/revdex/internal/corpus"
	"github.com/kailas-cloud/revdex/internal/domain"
	domret "github.com/kailas-cloud/revdex/internal/domain/retrieval"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/text/bm25"
	"github.com/kailas-cloud/revdex/internal/text/tokenize"
	healthuc "github.com/kailas-cloud/revdex/internal/usecase/health"
	"github.com/kailas-cloud/revdex/internal/usecase/ingest"
	"github.com/kailas-cloud/revdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/revdex/internal/usecase/summary"
	usageuc "github.com/kailas-cloud/revdex/internal/usecase/usage"
)

// Backend is a vector store the pipeline reads from and ingest writes to.
type Backend interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, embedding []float32, topK int, filters filter.Expression) ([]review.Hit, error)
	Upsert(ctx context.Context, reviews []review.Review) error
}

// App holds the wired services. Close releases connections and pools.
type App struct {
	Pipeline *retrieval.Pipeline
	Health   *healthuc.Service
	Usage    *usageuc.Service
	Ingest   *ingest.Service
	Backend  Backend

	closers []func()
	logger  *zap.Logger
}

// Option overrides a component built from config. Used by tests and the library.
type Option func(*overrides)

type overrides struct {
	backend  Backend
	embedder domain.Embedder
	model    domain.LanguageModel
}

// WithBackend replaces the configured vector store.
func WithBackend(b Backend) Option { return func(o *overrides) { o.backend = b } }

// WithEmbedder replaces the configured embedding provider. The budget and
// instruction decorators still apply.
func WithEmbedder(e domain.Embedder) Option { return func(o *overrides) { o.embedder = e } }

// WithLanguageModel replaces the configured summarizer model.
func WithLanguageModel(m domain.LanguageModel) Option { return func(o *overrides) { o.model = m } }

// Build wires every component from cfg. On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	vecCfg, provCfg, err := activeEmbedding(cfg, o.embedder != nil)
	if err != nil {
		return nil, err
	}
	dim := vecCfg.Dimensions
	if dim == 0 && o.embedder == nil {
		dim = domain.DefaultVectorConfig().Dimensions
	}

	st, err := a.openStore(ctx, cfg, dim, o.backend)
	if err != nil {
		return nil, err
	}
	a.Backend = st.backend

	budget := a.buildBudget(ctx, vecCfg.Provider, provCfg.Budget, st.kv)
	queryEmb, docEmb := a.buildEmbedders(cfg, vecCfg, provCfg, st, budget, o.embedder)

	var summarizer retrieval.Summarizer
	var llmChecker healthuc.ProviderChecker
	model, err := buildLanguageModel(cfg.LLM, o.model, logger)
	if err != nil {
		return nil, err
	}
	if model != nil {
		svc, err := summary.New(model, summaryConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("create summarizer: %w", err)
		}
		a.closers = append(a.closers, svc.Release)
		summarizer = svc
		llmChecker = model
	}

	tokenizers, err := tokenize.NewRegistry(cfg.Tokenizer.Default, cfg.Tokenizer.Channels, cfg.Tokenizer.ExtraStopwords)
	if err != nil {
		return nil, fmt.Errorf("tokenizer registry: %w", err)
	}

	params := bm25.WithParams(cfg.Retrieval.BM25K1, cfg.Retrieval.BM25B)
	a.Pipeline, err = retrieval.New(retrieval.Config{
		Dense: retrieval.NewDenseStage(retrieval.DenseConfig{
			Embedder:     queryEmb,
			Store:        st.backend,
			Dim:          dim,
			EmbedTimeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			StoreTimeout: time.Duration(cfg.Database.QueryTimeoutSec) * time.Second,
		}),
		Lexical:    retrieval.NewLexicalStage(params),
		Hybrid:     retrieval.NewHybridStage(params),
		Summarizer: summarizer,
		Tokenizers: tokenizers,
		Defaults:   defaultOptions(cfg.Retrieval),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	a.Health = healthuc.New(st.backend, queryEmb, llmChecker)

	// nil interface, not a typed nil pointer
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	a.Usage = usageuc.New(budgetReader)
	a.Ingest = ingest.New(st.backend, docEmb, dim, logger).WithBatchSize(cfg.Embedding.BatchSize)

	if err := a.Ingest.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	if cfg.Database.Driver == config.DriverMemory && cfg.Database.Path != "" && o.backend == nil {
		if err := a.loadCorpus(ctx, cfg.Database.Path); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) loadCorpus(ctx context.Context, path string) error {
	docs, err := corpus.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	stats, err := a.Ingest.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest corpus: %w", err)
	}
	a.logger.Info("Corpus loaded",
		zap.String("path", path),
		zap.Int("reviews", stats.Total),
		zap.Int("embedded", stats.Embedded),
		zap.Int("tokens", stats.Tokens),
	)
	return nil
}

func activeEmbedding(cfg *config.Config, injected bool) (config.VectorizerConfig, config.ProviderConfig, error) {
	if injected && len(cfg.Embedding.Vectorizers) == 0 {
		return config.VectorizerConfig{Provider: "custom"}, config.ProviderConfig{}, nil
	}
	vc, pc, err := cfg.Embedding.Active()
	if err != nil {
		return vc, pc, fmt.Errorf("embedding config: %w", err)
	}
	return vc, pc, nil
}

func summaryConfig(cfg *config.Config) summary.Config {
	sc := summary.Config{
		MaxDocsPerCall: cfg.Retrieval.MaxDocsPerCall,
		MaxTextChars:   cfg.Retrieval.MaxTextChars,
		MaxTokens:      cfg.LLM.MaxTokens,
		CallTimeout:    time.Duration(cfg.LLM.CallTimeoutSec) * time.Second,
		ChunkAttempts:  cfg.Retrieval.ChunkAttempts,
		Concurrency:    cfg.Retrieval.MapConcurrency,
		Temperature:    summary.DefaultConfig().Temperature,
	}
	if cfg.LLM.Temperature != nil {
		sc.Temperature = *cfg.LLM.Temperature
	}
	return sc
}

func defaultOptions(rc config.RetrievalConfig) domret.Options {
	return domret.Options{
		Budgets: domret.Budgets{
			Dense:   rc.DenseBudget,
			Lexical: rc.LexicalBudget,
			Hybrid:  rc.HybridBudget,
		},
		Alpha:         rc.Alpha,
		EnableSummary: rc.EnableSummary,
		ChunkSize:     rc.ChunkSize,
	}
}
