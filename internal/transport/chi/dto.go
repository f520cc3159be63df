package chi

import (
	"fmt"
	"time"

	domret "github.com/kailas-cloud/revdex/internal/domain/retrieval"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
	usageuc "github.com/kailas-cloud/revdex/internal/usecase/usage"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeQuotaExceeded    = "embedding_quota_exceeded"
	codeRateLimited      = "rate_limited"
	codeProviderError    = "embedding_provider_error"
	codeStoreUnavailable = "store_unavailable"
	codeModelError       = "language_model_error"
	codeInternalError    = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query         string         `json:"query"`
	Filters       map[string]any `json:"filters,omitempty"`
	StageBudgets  []int          `json:"stage_budgets,omitempty"`
	Alpha         *float64       `json:"alpha,omitempty"`
	EnableSummary *bool          `json:"enable_summary,omitempty"`
	ChunkSize     int            `json:"chunk_size,omitempty"`
	Tokenizer     string         `json:"tokenizer,omitempty"`
}

// ResultItem is one ranked review.
type ResultItem struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	Metadata     map[string]any `json:"metadata"`
	DenseScore   *float64       `json:"dense_score"`
	LexicalScore *float64       `json:"lexical_score"`
	HybridScore  *float64       `json:"hybrid_score"`
}

// RetrievalResult is the JSON envelope of one retrieval.
type RetrievalResult struct {
	RetrievalID  string       `json:"retrieval_id"`
	Stage1Count  int          `json:"stage1_count"`
	Stage2Count  int          `json:"stage2_count"`
	Stage3Count  int          `json:"stage3_count"`
	FinalResults []ResultItem `json:"final_results"`
	Summary      *string      `json:"summary"`
	Error        *string      `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UsageResponse is the body of GET /v1/usage.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// toOptions converts the body into options and filters; defaults fill the rest.
func (req RetrieveRequest) toOptions(defaults domret.Options) (filter.Expression, domret.Options, error) {
	filters, err := filter.FromMap(req.Filters)
	if err != nil {
		return filter.Expression{}, domret.Options{}, fmt.Errorf("filters: %w", err)
	}

	opts := domret.Options{
		Alpha:         req.Alpha,
		ChunkSize:     req.ChunkSize,
		Tokenizer:     req.Tokenizer,
		EnableSummary: defaults.EnableSummary,
	}
	if req.EnableSummary != nil {
		opts.EnableSummary = *req.EnableSummary
	}
	if opts.Budgets, err = domret.ParseBudgets(req.StageBudgets); err != nil {
		return filter.Expression{}, domret.Options{}, err
	}
	return filters, opts, nil
}

func resultFromEnvelope(env domret.Envelope) RetrievalResult {
	items := make([]ResultItem, len(env.Results))
	for i, r := range env.Results {
		items[i] = resultItem(r)
	}
	return RetrievalResult{
		RetrievalID:  env.RetrievalID,
		Stage1Count:  env.Stage1Count,
		Stage2Count:  env.Stage2Count,
		Stage3Count:  env.Stage3Count,
		FinalResults: items,
		Summary:      env.Summary,
		Error:        env.Error,
	}
}

func resultItem(r result.Result) ResultItem {
	rv := r.Review()
	return ResultItem{
		ID:           rv.ID(),
		Text:         rv.Text(),
		Metadata:     rv.Metadata(),
		DenseScore:   scorePtr(r.Dense()),
		LexicalScore: scorePtr(r.Lexical()),
		HybridScore:  scorePtr(r.Hybrid()),
	}
}

func scorePtr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func usageToResponse(r usageuc.Report) UsageResponse {
	return UsageResponse{
		Period:          string(r.Period),
		PeriodStartAt:   r.PeriodStart,
		PeriodEndAt:     r.PeriodEnd,
		TokensUsed:      r.Used,
		TokensLimit:     r.Limit,
		TokensRemaining: r.Remaining,
		IsExhausted:     r.Exhausted,
	}
}
