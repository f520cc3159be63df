package retrieval

import (
	"fmt"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
	"github.com/kailas-cloud/revdex/internal/text/bm25"
	"github.com/kailas-cloud/revdex/internal/text/tokenize"
)

// HybridStage blends dense and batch-normalized lexical scores.
type HybridStage struct {
	opts []bm25.Option
}

// NewHybridStage creates the hybrid stage. Options tune the BM25 used when
// lexical scores have to be recomputed.
func NewHybridStage(opts ...bm25.Option) *HybridStage {
	return &HybridStage{opts: opts}
}

// Fuse computes hybrid = alpha*dense + (1-alpha)*lexical/max(lexical) and keeps
// the topK, ties by id asc. If any lexical score is missing, every lexical score
// is recomputed over this batch so they all come from one index; a missing dense
// score fails with domain.ErrMissingScore.
func (s *HybridStage) Fuse(
	docs []result.Result, query string, topK int, alpha float64, tok tokenize.Tokenizer,
) ([]result.Result, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha %v outside [0, 1]", domain.ErrInvalidRequest, alpha)
	}
	if len(docs) == 0 {
		return []result.Result{}, nil
	}

	out := make([]result.Result, len(docs))
	copy(out, docs)

	var recompute bool
	for _, d := range out {
		if _, ok := d.Dense(); !ok {
			return nil, fmt.Errorf("review %s: %w: dense", d.ID(), domain.ErrMissingScore)
		}
		if _, ok := d.Lexical(); !ok {
			recompute = true
		}
	}
	if recompute {
		scores := score(out, query, tok, s.opts)
		for i, d := range out {
			out[i] = d.WithLexical(scores[i])
		}
	}

	var maxLex float64
	for _, d := range out {
		maxLex = max(maxLex, result.LexicalKey(d))
	}

	for i, d := range out {
		var norm float64
		if maxLex > 0 {
			norm = result.LexicalKey(d) / maxLex
		}
		out[i] = d.WithHybrid(alpha*result.DenseKey(d) + (1-alpha)*norm)
	}

	result.SortByScore(out, result.HybridKey)
	return result.Top(out, topK), nil
}
