package retrieval

import "github.com/kailas-cloud/revdex/internal/domain/search/result"

// Sentinel values placed into the envelope instead of error returns.
const (
	NoDataSummary = "no data"
	SummaryFailed = "summary generation failed"
	ErrorNoData   = "no_data"
)

// Envelope is the outcome of one retrieval run.
type Envelope struct {
	RetrievalID string
	Stage1Count int
	Stage2Count int
	Stage3Count int
	Results     []result.Result
	// Summary is nil when not requested.
	Summary *string
	// Error is nil on success, ErrorNoData when the dense stage found nothing.
	Error *string
}

// NoData builds the short-circuit envelope.
func NoData(id string, summaryRequested bool) Envelope {
	code := ErrorNoData
	env := Envelope{RetrievalID: id, Results: []result.Result{}, Error: &code}
	if summaryRequested {
		s := NoDataSummary
		env.Summary = &s
	}
	return env
}
