package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex/internal/domain"
	domret "github.com/kailas-cloud/revdex/internal/domain/retrieval"
	"github.com/kailas-cloud/revdex/internal/domain/retrieval/stage"
	"github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
	"github.com/kailas-cloud/revdex/internal/logger"
	"github.com/kailas-cloud/revdex/internal/metrics"
	"github.com/kailas-cloud/revdex/internal/text/tokenize"
)

const tracerName = "github.com/kailas-cloud/revdex/internal/usecase/retrieval"

// ChannelKey is the equality filter consulted when no tokenizer is named explicitly.
const ChannelKey = "channel"

// run is the mutable state of one Retrieve call.
type run struct {
	req     domret.Request
	tok     tokenize.Tokenizer
	results []result.Result
	env     domret.Envelope
	done    bool
}

type handler func(p *Pipeline, ctx context.Context, r *run) error

// dispatch maps every stage kind to its handler.
var dispatch = map[stage.Kind]handler{
	stage.Dense:   (*Pipeline).runDense,
	stage.Lexical: (*Pipeline).runLexical,
	stage.Hybrid:  (*Pipeline).runHybrid,
	stage.Summary: (*Pipeline).runSummary,
}

// Pipeline sequences the stages of one retrieval.
type Pipeline struct {
	dense      DenseSearcher
	lexical    LexicalReranker
	hybrid     HybridFuser
	summarizer Summarizer
	tokenizers TokenizerRegistry
	defaults   domret.Options
	stages     []stage.Kind
	tracer     trace.Tracer
	logger     *zap.Logger
	newID      func() string
}

// Config carries the collaborators, created once in the composition root.
// Lexical and Hybrid default to the BM25 implementations; Summarizer may be nil.
type Config struct {
	Dense      DenseSearcher
	Lexical    LexicalReranker
	Hybrid     HybridFuser
	Summarizer Summarizer
	Tokenizers TokenizerRegistry
	Defaults   domret.Options
	Logger     *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline) error

// WithStages restricts the cascade to kinds, which must follow stage.Order and
// start with stage.Dense. A skipped lexical stage is covered by hybrid recompute.
func WithStages(kinds ...stage.Kind) Option {
	return func(p *Pipeline) error {
		if len(kinds) == 0 || kinds[0] != stage.Dense {
			return fmt.Errorf("pipeline must start with the %s stage", stage.Dense)
		}
		pos := make(map[stage.Kind]int, len(stage.Order()))
		for i, k := range stage.Order() {
			pos[k] = i
		}
		last := -1
		for _, k := range kinds {
			if _, ok := dispatch[k]; !ok {
				return fmt.Errorf("unknown stage %q", k)
			}
			if pos[k] <= last {
				return fmt.Errorf("stage %q out of order", k)
			}
			last = pos[k]
		}
		p.stages = kinds
		return nil
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) error {
		p.tracer = t
		return nil
	}
}

// withIDGenerator is used by tests for stable retrieval ids.
func withIDGenerator(f func() string) Option {
	return func(p *Pipeline) error {
		p.newID = f
		return nil
	}
}

// New builds a pipeline. Errors are configuration errors.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.Dense == nil {
		return nil, errors.New("dense stage is required")
	}
	if cfg.Tokenizers == nil {
		return nil, errors.New("tokenizer registry is required")
	}
	p := &Pipeline{
		dense:      cfg.Dense,
		lexical:    cfg.Lexical,
		hybrid:     cfg.Hybrid,
		summarizer: cfg.Summarizer,
		tokenizers: cfg.Tokenizers,
		defaults:   cfg.Defaults.WithDefaults(domret.DefaultOptions()),
		stages:     stage.Order(),
		tracer:     otel.Tracer(tracerName),
		logger:     cfg.Logger,
		newID:      uuid.NewString,
	}
	if p.lexical == nil {
		p.lexical = NewLexicalStage()
	}
	if p.hybrid == nil {
		p.hybrid = NewHybridStage()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}
	if err := p.defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default options: %w", err)
	}
	return p, nil
}

// Defaults returns the options applied to unset request fields.
func (p *Pipeline) Defaults() domret.Options { return p.defaults }

// NewRequest applies pipeline defaults and validates.
func (p *Pipeline) NewRequest(query string, filters filter.Expression, opts domret.Options) (domret.Request, error) {
	return domret.NewRequest(query, filters, opts.WithDefaults(p.defaults))
}

// Retrieve runs the cascade. Embedding and store failures are fatal and come
// back as *stage.Error; an empty dense result is a NoData envelope, not an error.
func (p *Pipeline) Retrieve(ctx context.Context, req domret.Request) (domret.Envelope, error) {
	id := p.newID()
	start := time.Now()
	log := logger.FromContextOr(ctx, p.logger).With(zap.String("retrieval_id", id))
	ctx = logger.ContextWithLogger(ctx, log)

	ctx, span := p.tracer.Start(ctx, "retrieval.retrieve",
		trace.WithAttributes(attribute.String("retrieval.id", id)))
	defer span.End()

	tok, err := p.tokenizer(req)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return domret.Envelope{}, err
	}

	r := &run{req: req, tok: tok, env: domret.Envelope{RetrievalID: id}}
	durations := make([]zap.Field, 0, len(p.stages))

	for _, kind := range p.stages {
		if r.done {
			break
		}
		if kind == stage.Summary && !req.Options().EnableSummary {
			continue
		}

		took, err := p.runStage(ctx, kind, r)
		durations = append(durations, zap.Duration(string(kind)+"_duration", took))
		if err != nil {
			metrics.RetrievalsTotal.WithLabelValues("error").Inc()
			span.SetStatus(codes.Error, err.Error())
			log.Error("Retrieval stage failed", zap.String("stage", string(kind)), zap.Error(err))
			return domret.Envelope{}, &stage.Error{Stage: kind, Err: err}
		}
	}

	outcome := "ok"
	if r.env.Error != nil {
		outcome = *r.env.Error
	} else {
		p.carryCounts(r)
		r.env.Results = r.results
	}
	metrics.RetrievalsTotal.WithLabelValues(outcome).Inc()

	log.Info("retrieval_completed", append([]zap.Field{
		zap.String("outcome", outcome),
		zap.Int("stage1_count", r.env.Stage1Count),
		zap.Int("stage2_count", r.env.Stage2Count),
		zap.Int("stage3_count", r.env.Stage3Count),
		zap.String("tokenizer", tok.Name()),
		zap.Bool("summary", r.env.Summary != nil),
		zap.Duration("duration", time.Since(start)),
	}, durations...)...)
	return r.env, nil
}

func (p *Pipeline) runStage(ctx context.Context, kind stage.Kind, r *run) (time.Duration, error) {
	ctx, span := p.tracer.Start(ctx, "retrieval."+string(kind))
	defer span.End()

	start := time.Now()
	err := dispatch[kind](p, ctx, r)
	took := time.Since(start)

	metrics.StageDuration.WithLabelValues(string(kind)).Observe(took.Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return took, err
	}
	if kind != stage.Summary {
		metrics.StageOutputSize.WithLabelValues(string(kind)).Observe(float64(len(r.results)))
		span.SetAttributes(attribute.Int("retrieval.output_size", len(r.results)))
	}
	return took, nil
}

func (p *Pipeline) runDense(ctx context.Context, r *run) error {
	opts := r.req.Options()
	results, err := p.dense.Search(ctx, r.req.Query(), opts.Budgets.Dense, r.req.Filters())
	if err != nil {
		return err //nolint:wrapcheck // attributed by stage.Error
	}
	if len(results) == 0 {
		r.env = domret.NoData(r.env.RetrievalID, opts.EnableSummary)
		r.done = true
		return nil
	}
	r.results = results
	r.env.Stage1Count = len(results)
	return nil
}

func (p *Pipeline) runLexical(_ context.Context, r *run) error {
	r.results = p.lexical.Rerank(r.results, r.req.Query(), r.req.Options().Budgets.Lexical, r.tok)
	r.env.Stage2Count = len(r.results)
	return nil
}

func (p *Pipeline) runHybrid(_ context.Context, r *run) error {
	opts := r.req.Options()
	fused, err := p.hybrid.Fuse(r.results, r.req.Query(), opts.Budgets.Hybrid, opts.AlphaValue(), r.tok)
	if err != nil {
		return err //nolint:wrapcheck // attributed by stage.Error
	}
	r.results = fused
	r.env.Stage3Count = len(fused)
	return nil
}

func (p *Pipeline) runSummary(ctx context.Context, r *run) error {
	text := domret.SummaryFailed
	if p.summarizer != nil {
		docs := make([]review.Review, len(r.results))
		for i, res := range r.results {
			docs[i] = res.Review()
		}
		text = p.summarizer.Summarize(ctx, docs, r.req.Query(), r.req.Options().ChunkSize)
	} else {
		logger.FromContext(ctx).Warn("Summary requested but no language model is configured")
	}
	r.env.Summary = &text
	return nil
}

// carryCounts fills boundaries of skipped stages with the previous count.
func (p *Pipeline) carryCounts(r *run) {
	if r.env.Stage2Count == 0 {
		r.env.Stage2Count = r.env.Stage1Count
	}
	if r.env.Stage3Count == 0 {
		r.env.Stage3Count = r.env.Stage2Count
	}
}

// tokenizer: explicit request name, then the channel equality filter, then the default.
func (p *Pipeline) tokenizer(req domret.Request) (tokenize.Tokenizer, error) {
	if name := req.Options().Tokenizer; name != "" {
		tok, err := p.tokenizers.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		return tok, nil
	}
	channel, _ := req.Filters().Equal(ChannelKey)
	return p.tokenizers.Get(channel), nil
}
