package revdex

import (
	"context"

	domret "github.com/kailas-cloud/revdex/internal/domain/retrieval"
)

// Sentinel summary and error values carried in Result.
const (
	SummaryNoData = domret.NoDataSummary
	SummaryFailed = domret.SummaryFailed
	ErrorNoData   = domret.ErrorNoData
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// LanguageModel completes one system+user prompt.
type LanguageModel interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}

// Prompt is one summarizer request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion is the model output and its token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// RetrieveRequest is one retrieval query. Zero fields take the client defaults.
type RetrieveRequest struct {
	Query string `json:"query"`
	// Filters use the HTTP API form: "brand": "acme", "min_rating": 4,
	// "date_from": "2024-01-01", "rating": {"gte": 3}.
	Filters map[string]any `json:"filters,omitempty"`
	// StageBudgets is [dense, lexical, hybrid]; must not increase.
	StageBudgets  []int    `json:"stage_budgets,omitempty"`
	Alpha         *float64 `json:"alpha,omitempty"`
	EnableSummary *bool    `json:"enable_summary,omitempty"`
	ChunkSize     int      `json:"chunk_size,omitempty"`
	Tokenizer     string   `json:"tokenizer,omitempty"`
}

// ScoredReview is one ranked review with the scores of every stage it passed.
type ScoredReview struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	Metadata     map[string]any `json:"metadata"`
	DenseScore   *float64       `json:"dense_score"`
	LexicalScore *float64       `json:"lexical_score"`
	HybridScore  *float64       `json:"hybrid_score"`
}

// Result is the outcome of one retrieval.
type Result struct {
	RetrievalID  string         `json:"retrieval_id"`
	Stage1Count  int            `json:"stage1_count"`
	Stage2Count  int            `json:"stage2_count"`
	Stage3Count  int            `json:"stage3_count"`
	FinalResults []ScoredReview `json:"final_results"`
	// Summary is nil when not requested.
	Summary *string `json:"summary"`
	// Error is ErrorNoData when the dense stage matched nothing.
	Error *string `json:"error"`
}

// Document is a review to ingest. Metadata strings become exact-match filter
// fields; numbers (and time.Time, as unix seconds) become range fields.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

// IngestStats summarizes one ingest call.
type IngestStats struct {
	Total    int
	Embedded int
	Tokens   int
}

// Health is the aggregated component status: "ok", "degraded" or "error".
type Health struct {
	Status string
	Checks map[string]string
}
