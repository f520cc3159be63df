package retrieval

import (
	"github.com/kailas-cloud/revdex/internal/domain/search/result"
	"github.com/kailas-cloud/revdex/internal/text/bm25"
	"github.com/kailas-cloud/revdex/internal/text/tokenize"
)

// LexicalStage re-scores its input with a BM25 index built over exactly that input.
type LexicalStage struct {
	opts []bm25.Option
}

// NewLexicalStage creates the lexical stage. Options tune BM25 k1/b.
func NewLexicalStage(opts ...bm25.Option) *LexicalStage {
	return &LexicalStage{opts: opts}
}

// Rerank attaches lexical scores and keeps the topK, ties by id asc.
// Empty input returns empty output without tokenizing anything.
func (s *LexicalStage) Rerank(
	docs []result.Result, query string, topK int, tok tokenize.Tokenizer,
) []result.Result {
	if len(docs) == 0 {
		return []result.Result{}
	}

	scores := score(docs, query, tok, s.opts)
	out := make([]result.Result, len(docs))
	for i, d := range docs {
		out[i] = d.WithLexical(scores[i])
	}
	result.SortByScore(out, result.LexicalKey)
	return result.Top(out, topK)
}

// score builds a per-call index over docs and scores query against it.
func score(docs []result.Result, query string, tok tokenize.Tokenizer, opts []bm25.Option) []float64 {
	corpus := make([][]string, len(docs))
	for i, d := range docs {
		corpus[i] = tok.Tokenize(d.Review().Text())
	}
	return bm25.New(corpus, opts...).Score(tok.Tokenize(query))
}
