package summary

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/revdex/internal/domain/review"
)

const summarizeSystemPrompt = `You summarize customer product reviews.
Write a short, factual summary of what the reviews below say about the user's question.
Mention recurring praise and complaints. Do not invent facts that are not in the reviews.`

const reduceSystemPrompt = `You merge partial summaries of customer product reviews.
Combine the partial summaries below into one concise summary that answers the user's question.
Keep points that several summaries agree on, and note disagreements briefly.`

func reviewsPrompt(query string, docs []review.Review, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nReviews:\n", query)
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s] %s\n", d.ID(), truncate(d.Text(), maxChars))
	}
	return b.String()
}

func reducePrompt(query string, partials []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nPartial summaries:\n", query)
	for i, p := range partials {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	return b.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
