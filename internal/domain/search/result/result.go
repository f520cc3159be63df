package result

import (
	"sort"
	"strconv"

	"github.com/kailas-cloud/revdex/internal/domain/review"
)

// Result is a review carrying every score computed for it so far.
// Stages return updated copies; earlier scores are never dropped.
type Result struct {
	review review.Review

	dense, lexical, hybrid          float64
	hasDense, hasLexical, hasHybrid bool
}

// New wraps a review without any score.
func New(r review.Review) Result {
	return Result{review: r}
}

// FromHit wraps a vector store hit, using its similarity as the dense score.
func FromHit(h review.Hit) Result {
	return New(h.Review).WithDense(h.Similarity)
}

// Review returns the underlying review.
func (r Result) Review() review.Review { return r.review }

// ID returns the review identifier.
func (r Result) ID() string { return r.review.ID() }

// Dense returns the dense (cosine) score.
func (r Result) Dense() (float64, bool) { return r.dense, r.hasDense }

// Lexical returns the raw BM25 score.
func (r Result) Lexical() (float64, bool) { return r.lexical, r.hasLexical }

// Hybrid returns the fused score.
func (r Result) Hybrid() (float64, bool) { return r.hybrid, r.hasHybrid }

// WithDense returns a copy with the dense score set.
func (r Result) WithDense(s float64) Result {
	r.dense, r.hasDense = s, true
	return r
}

// WithLexical returns a copy with the lexical score set.
func (r Result) WithLexical(s float64) Result {
	r.lexical, r.hasLexical = s, true
	return r
}

// WithHybrid returns a copy with the hybrid score set.
func (r Result) WithHybrid(s float64) Result {
	r.hybrid, r.hasHybrid = s, true
	return r
}

// CompareIDs orders review ids: numeric ids compare numerically and sort
// before non-numeric ones, the rest compare lexicographically.
func CompareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortByScore orders results by key descending, ties by id ascending.
func SortByScore(results []Result, key func(Result) float64) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := key(results[i]), key(results[j])
		if si != sj {
			return si > sj
		}
		return CompareIDs(results[i].ID(), results[j].ID()) < 0
	})
}

// Top returns at most k leading results.
func Top(results []Result, k int) []Result {
	if k < 0 || len(results) <= k {
		return results
	}
	return results[:k]
}

// DenseKey selects the dense score for SortByScore.
func DenseKey(r Result) float64 { return r.dense }

// LexicalKey selects the lexical score.
func LexicalKey(r Result) float64 { return r.lexical }

// HybridKey selects the hybrid score.
func HybridKey(r Result) float64 { return r.hybrid }
