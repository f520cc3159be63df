// Package revdex is the library facade of the review retrieval pipeline:
// dense vector search, BM25 re-ranking, hybrid fusion and an optional
// map-reduce summary.
package revdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex/internal/app"
	"github.com/kailas-cloud/revdex/internal/config"
	"github.com/kailas-cloud/revdex/internal/corpus"
	"github.com/kailas-cloud/revdex/internal/domain"
	domret "github.com/kailas-cloud/revdex/internal/domain/retrieval"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
	"github.com/kailas-cloud/revdex/internal/usecase/ingest"
)

// Client is the revdex SDK entry point. Safe for concurrent use.
type Client struct {
	app *app.App
}

// New wires a Client and connects to the configured store.
// Without store options reviews live in memory.
func New(opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg, err := cc.toConfig()
	if err != nil {
		return nil, err
	}
	if cc.embedder == nil && len(cfg.Embedding.Vectorizers) == 0 {
		return nil, errors.New("revdex: embedder required (use WithEmbedder or WithOpenAIEmbeddings)")
	}

	var appOpts []app.Option
	if cc.embedder != nil {
		appOpts = append(appOpts, app.WithEmbedder(&embedderAdapter{inner: cc.embedder}))
	}
	if cc.model != nil {
		appOpts = append(appOpts, app.WithLanguageModel(&modelAdapter{inner: cc.model}))
	}

	logger := cc.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := app.Build(context.Background(), cfg, logger, appOpts...)
	if err != nil {
		return nil, fmt.Errorf("revdex: %w", err)
	}
	return &Client{app: a}, nil
}

// Close releases connections and worker pools.
func (c *Client) Close() {
	c.app.Close()
}

// Retrieve runs the cascade. A query that matches nothing is not an error:
// Result.Error is ErrorNoData.
func (c *Client) Retrieve(ctx context.Context, req RetrieveRequest) (*Result, error) {
	filters, err := filter.FromMap(req.Filters)
	if err != nil {
		return nil, fmt.Errorf("revdex: %w: filters: %w", ErrInvalidRequest, err)
	}
	budgets, err := domret.ParseBudgets(req.StageBudgets)
	if err != nil {
		return nil, fmt.Errorf("revdex: %w", err)
	}

	p := c.app.Pipeline
	opts := domret.Options{
		Budgets:       budgets,
		Alpha:         req.Alpha,
		EnableSummary: p.Defaults().EnableSummary,
		ChunkSize:     req.ChunkSize,
		Tokenizer:     req.Tokenizer,
	}
	if req.EnableSummary != nil {
		opts.EnableSummary = *req.EnableSummary
	}

	r, err := p.NewRequest(req.Query, filters, opts)
	if err != nil {
		return nil, fmt.Errorf("revdex: %w", err)
	}
	env, err := p.Retrieve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("revdex: retrieve: %w", err)
	}
	return resultFromEnvelope(env), nil
}

// Ingest embeds documents without a vector and writes them to the store.
func (c *Client) Ingest(ctx context.Context, docs []Document) (IngestStats, error) {
	reviews := make([]review.Review, len(docs))
	for i, d := range docs {
		rv, err := documentToReview(d)
		if err != nil {
			return IngestStats{}, fmt.Errorf("revdex: document %d: %w", i, err)
		}
		reviews[i] = rv
	}
	return c.ingest(ctx, reviews)
}

// IngestFile reads a JSON Lines corpus ({"id", "text", "metadata", "embedding"}) and ingests it.
func (c *Client) IngestFile(ctx context.Context, path string) (IngestStats, error) {
	reviews, err := corpus.ReadFile(path)
	if err != nil {
		return IngestStats{}, fmt.Errorf("revdex: %w", err)
	}
	return c.ingest(ctx, reviews)
}

func (c *Client) ingest(ctx context.Context, reviews []review.Review) (IngestStats, error) {
	stats, err := c.app.Ingest.Ingest(ctx, reviews)
	if err != nil {
		return IngestStats{}, fmt.Errorf("revdex: ingest: %w", err)
	}
	return ingestStats(stats), nil
}

// EnsureIndex creates the search index or table when the store needs one.
func (c *Client) EnsureIndex(ctx context.Context) error {
	if err := c.app.Ingest.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("revdex: %w", err)
	}
	return nil
}

// Health checks the store and the configured providers.
func (c *Client) Health(ctx context.Context) Health {
	r := c.app.Health.Check(ctx)
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	return Health{Status: string(r.Status), Checks: checks}
}

func (c *clientConfig) toConfig() (*config.Config, error) {
	var cfg config.Config
	if c.configFile != "" {
		loaded, err := config.LoadFile(c.configFile)
		if err != nil {
			return nil, fmt.Errorf("revdex: %w", err)
		}
		cfg = loaded
	} else {
		cfg.Database.Driver = config.DriverMemory
	}

	if c.driver != "" {
		cfg.Database.Driver = c.driver
		cfg.Database.Addrs = c.addrs
		cfg.Database.Password = c.password
		cfg.Database.DSN = c.dsn
		cfg.Database.Path = c.corpusPath
	}
	if c.openAI != nil {
		cfg.Embedding.Providers = map[string]config.ProviderConfig{
			"openai": {APIKey: c.openAI.apiKey, BaseURL: c.openAI.baseURL},
		}
		cfg.Embedding.Vectorizers = map[string]config.VectorizerConfig{
			"default": {Provider: "openai", Model: c.openAI.model, Dimensions: c.openAI.dimensions},
		}
		cfg.Embedding.Vectorizer = "default"
	}
	if c.llmDriver != "" {
		cfg.LLM.Driver = c.llmDriver
		cfg.LLM.Model = c.llmModel
		cfg.LLM.BaseURL = c.llmBaseURL
		cfg.LLM.APIKey = c.llmAPIKey
	}

	r := &cfg.Retrieval
	if c.budgets != nil {
		r.DenseBudget, r.LexicalBudget, r.HybridBudget = c.budgets[0], c.budgets[1], c.budgets[2]
	}
	if c.alpha != nil {
		r.Alpha = c.alpha
	}
	if c.enableSummary != nil {
		r.EnableSummary = *c.enableSummary
	}
	if c.chunkSize > 0 {
		r.ChunkSize = c.chunkSize
	}
	if c.defaultTokenizer != "" {
		cfg.Tokenizer.Default = c.defaultTokenizer
	}
	for ch, tok := range c.channels {
		if cfg.Tokenizer.Channels == nil {
			cfg.Tokenizer.Channels = make(map[string]string)
		}
		cfg.Tokenizer.Channels[ch] = tok
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

func resultFromEnvelope(env domret.Envelope) *Result {
	items := make([]ScoredReview, len(env.Results))
	for i, r := range env.Results {
		items[i] = scoredReview(r)
	}
	return &Result{
		RetrievalID:  env.RetrievalID,
		Stage1Count:  env.Stage1Count,
		Stage2Count:  env.Stage2Count,
		Stage3Count:  env.Stage3Count,
		FinalResults: items,
		Summary:      env.Summary,
		Error:        env.Error,
	}
}

func scoredReview(r result.Result) ScoredReview {
	rv := r.Review()
	out := ScoredReview{ID: rv.ID(), Text: rv.Text(), Metadata: rv.Metadata()}
	if v, ok := r.Dense(); ok {
		out.DenseScore = &v
	}
	if v, ok := r.Lexical(); ok {
		out.LexicalScore = &v
	}
	if v, ok := r.Hybrid(); ok {
		out.HybridScore = &v
	}
	return out
}

func ingestStats(s ingest.Stats) IngestStats {
	return IngestStats{Total: s.Total, Embedded: s.Embedded, Tokens: s.Tokens}
}

func documentToReview(d Document) (review.Review, error) {
	tags := make(map[string]string)
	numerics := make(map[string]float64)
	for k, v := range d.Metadata {
		switch x := v.(type) {
		case nil:
		case string:
			tags[k] = x
		case bool:
			tags[k] = fmt.Sprint(x)
		case int:
			numerics[k] = float64(x)
		case int64:
			numerics[k] = float64(x)
		case float32:
			numerics[k] = float64(x)
		case float64:
			numerics[k] = x
		case time.Time:
			numerics[k] = float64(x.Unix())
		default:
			return review.Review{}, fmt.Errorf("%w: metadata %q: unsupported value %T", ErrInvalidRequest, k, v)
		}
	}
	rv, err := review.New(d.ID, d.Text, tags, numerics)
	if err != nil {
		return review.Review{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(d.Embedding) > 0 {
		rv = rv.WithEmbedding(d.Embedding)
	}
	return rv, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// modelAdapter wraps public LanguageModel to satisfy internal domain.LanguageModel.
type modelAdapter struct {
	inner LanguageModel
}

func (a *modelAdapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	out, err := a.inner.Complete(ctx, Prompt{
		System:      req.SystemPrompt,
		User:        req.UserPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return domain.Completion{}, fmt.Errorf("%w: %w", domain.ErrModel, err)
	}
	return domain.Completion{
		Text:             out.Text,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
	}, nil
}
