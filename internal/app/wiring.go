package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex/internal/config"
	"github.com/kailas-cloud/revdex/internal/db/postgres"
	dbValkey "github.com/kailas-cloud/revdex/internal/db/valkey"
	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/revdex/internal/repository/budget"
	"github.com/kailas-cloud/revdex/internal/repository/embcache"
	"github.com/kailas-cloud/revdex/internal/repository/memstore"
	"github.com/kailas-cloud/revdex/internal/repository/pgreview"
	reviewrepo "github.com/kailas-cloud/revdex/internal/repository/review"
	"github.com/kailas-cloud/revdex/internal/transport/langchain"
	openaitr "github.com/kailas-cloud/revdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/revdex/internal/usecase/embedding"
	llmuc "github.com/kailas-cloud/revdex/internal/usecase/llm"
)

// kvStore is what the embedding cache and the budget counters need.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// providerEmbedder is an embedder chain that can report provider health.
type providerEmbedder interface {
	domain.Embedder
	HealthCheck(ctx context.Context) error
}

type opened struct {
	backend Backend
	// kv is nil unless the store is Valkey/Redis.
	kv    kvStore
	cache cacheStore
	// cacheBackend labels cache metrics.
	cacheBackend string
}

// openStore connects the configured vector store. Valkey/Redis also back the
// embedding cache and budget counters; other drivers cache in process.
func (a *App) openStore(ctx context.Context, cfg *config.Config, dim int, injected Backend) (opened, error) {
	lru := embcache.NewLRU(cfg.Storage.CacheSize, time.Duration(cfg.Storage.CacheTTLSec)*time.Second)
	if injected != nil {
		return opened{backend: injected, cache: lru, cacheBackend: "lru"}, nil
	}

	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	switch cfg.Database.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return opened{}, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, readiness); err != nil {
			return opened{}, fmt.Errorf("%s not ready: %w", cfg.Database.Driver, err)
		}
		schema := reviewrepo.DefaultSchema(dim)
		schema.HNSW = reviewrepo.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct}
		schema.Flat = cfg.Index.Algorithm == config.IndexAlgorithmFlat
		repo := reviewrepo.New(store, cfg.Storage.KeyPrefix, cfg.Storage.Collection, schema)
		a.logger.Info("Connected to vector store",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
			zap.String("index", repo.IndexName()),
		)
		return opened{backend: repo, kv: store, cache: store, cacheBackend: cfg.Database.Driver}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return opened{}, fmt.Errorf("create postgres pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.WaitForReady(ctx, pool, readiness); err != nil {
			return opened{}, fmt.Errorf("postgres not ready: %w", err)
		}
		a.logger.Info("Connected to vector store",
			zap.String("driver", cfg.Database.Driver),
			zap.String("table", cfg.Database.Table),
		)
		return opened{backend: pgreview.New(pool, cfg.Database.Table, dim), cache: lru, cacheBackend: "lru"}, nil

	case config.DriverMemory:
		return opened{backend: memstore.New(dim), cache: lru, cacheBackend: "lru"}, nil
	}
	return opened{}, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// buildBudget returns nil when no limits are configured. Counters persist only
// in a shared key-value store.
func (a *App) buildBudget(
	ctx context.Context, provider string, bc config.BudgetConfig, kv kvStore,
) *embeddinguc.BudgetTracker {
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if bc.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	budget := embeddinguc.NewBudgetTracker(provider, embeddinguc.Limits{
		Daily:   bc.DailyTokenLimit,
		Monthly: bc.MonthlyTokenLimit,
		Action:  action,
	}, a.logger)
	if kv != nil {
		budget.WithStore(ctx, budgetrepo.New(kv, 48*time.Hour, 62*24*time.Hour))
	}
	return budget
}

// buildEmbedders assembles the decorator chain
// provider -> cache -> instrumented (budget) -> instruction
// once for queries and once for documents; both share the cache and budget.
func (a *App) buildEmbedders(
	cfg *config.Config,
	vecCfg config.VectorizerConfig,
	provCfg config.ProviderConfig,
	st opened,
	budget *embeddinguc.BudgetTracker,
	injected domain.Embedder,
) (query, doc providerEmbedder) {
	var base domain.Embedder = injected
	if base == nil {
		base = openaitr.NewEmbedder(&openaitr.Config{
			ClientConfig: openaitr.ClientConfig{
				APIKey:  provCfg.APIKey,
				BaseURL: provCfg.BaseURL,
				Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			},
			Model:      vecCfg.Model,
			Dimensions: vecCfg.Dimensions,
			Provider:   vecCfg.Provider,
			Logger:     a.logger,
		})
	}

	cached := embcache.New(base, st.cache, embcache.Options{
		Namespace: vecCfg.Model,
		TTL:       time.Duration(cfg.Storage.CacheTTLSec) * time.Second,
		Backend:   st.cacheBackend,
	}, metrics.EmbeddingCacheTotal, a.logger)

	// nil interface, not a typed nil pointer
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}
	instrumented := embeddinguc.NewInstrumentedEmbedder(cached, vecCfg.Provider, vecCfg.Model, checker, a.logger).
		WithBatchSize(cfg.Embedding.BatchSize)

	a.logger.Info("Embedder created",
		zap.String("provider", vecCfg.Provider),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
		zap.String("cache", st.cacheBackend),
	)
	return withInstruction(instrumented, vecCfg.QueryInstruction),
		withInstruction(instrumented, vecCfg.DocumentInstruction)
}

func withInstruction(e *embeddinguc.InstrumentedEmbedder, instruction string) providerEmbedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

// buildLanguageModel returns nil when summaries are disabled (no driver).
func buildLanguageModel(
	cfg config.LLMConfig, injected domain.LanguageModel, logger *zap.Logger,
) (*llmuc.InstrumentedModel, error) {
	inner := injected
	if inner == nil {
		switch cfg.Driver {
		case "":
			return nil, nil
		case config.LLMDriverOpenAI:
			inner = openaitr.NewChatModel(&openaitr.ChatConfig{
				ClientConfig: openaitr.ClientConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL},
				Model:        cfg.Model,
				Provider:     config.LLMDriverOpenAI,
				Logger:       logger,
			})
		case config.LLMDriverOllama:
			m, err := langchain.NewOllama(cfg.BaseURL, cfg.Model)
			if err != nil {
				return nil, fmt.Errorf("create language model: %w", err)
			}
			inner = m
		default:
			return nil, fmt.Errorf("unknown llm driver %q", cfg.Driver)
		}
	}
	logger.Info("Language model created",
		zap.String("driver", cfg.Driver),
		zap.String("model", cfg.Model),
		zap.Float64("rps", cfg.RequestsPerSecond),
	)
	return llmuc.NewInstrumentedModel(inner, cfg.Model, cfg.RequestsPerSecond, cfg.Burst, logger), nil
}
