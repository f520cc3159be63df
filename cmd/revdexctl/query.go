package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/revdex"
)

type queryFlags struct {
	filters   []string
	budgets   []int
	alpha     float64
	summary   bool
	chunkSize int
	tokenizer string
	jsonOut   bool
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Run one retrieval",
		Long: `Run the retrieval cascade for a natural-language question.

Filters narrow the dense stage. Values that parse as numbers become numeric
filters; min_rating, max_rating, date_from and date_to are range shorthands.

Examples:
  revdexctl query "is it greasy" -f brand=acme -f min_rating=4
  revdexctl query "delivery speed" --tokenizer whitespace --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(cmd, args[0])
			if err != nil {
				return err
			}

			c, err := g.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Retrieve(cmd.Context(), req)
			if err != nil {
				return err //nolint:wrapcheck // revdex errors are already prefixed
			}
			if f.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return writeText(cmd.OutOrStdout(), res)
		},
	}

	f.register(cmd)
	return cmd
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "metadata filter key=value (repeatable)")
	cmd.Flags().IntSliceVar(&f.budgets, "budgets", nil, "stage budgets dense,lexical,hybrid")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0.5, "hybrid weight of the dense score")
	cmd.Flags().BoolVar(&f.summary, "summary", false, "summarize the final reviews")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "reviews per summarizer call")
	cmd.Flags().StringVar(&f.tokenizer, "tokenizer", "", "tokenizer name (unicode, whitespace, cjk_bigram)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "output as JSON")
}

// request builds the retrieval request; unset flags keep the config defaults.
func (f *queryFlags) request(cmd *cobra.Command, query string) (revdex.RetrieveRequest, error) {
	filters, err := parseFilters(f.filters)
	if err != nil {
		return revdex.RetrieveRequest{}, err
	}
	req := revdex.RetrieveRequest{
		Query:        query,
		Filters:      filters,
		StageBudgets: f.budgets,
		ChunkSize:    f.chunkSize,
		Tokenizer:    f.tokenizer,
	}
	if cmd.Flags().Changed("alpha") {
		alpha := f.alpha
		req.Alpha = &alpha
	}
	if cmd.Flags().Changed("summary") {
		summary := f.summary
		req.EnableSummary = &summary
	}
	return req, nil
}

// parseFilters turns key=value pairs into the filter map. Numbers stay numbers
// so that "rating=5" is a numeric equality.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", p)
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out, nil
}

func writeJSON(w io.Writer, res *revdex.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

func writeText(w io.Writer, res *revdex.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "retrieval %s: %d -> %d -> %d\n", res.RetrievalID, res.Stage1Count, res.Stage2Count, res.Stage3Count)
	if res.Error != nil {
		fmt.Fprintf(&b, "error: %s\n", *res.Error)
	}
	for i, r := range res.FinalResults {
		fmt.Fprintf(&b, "%2d. [%s] %s  %s\n", i+1, r.ID, formatScore(r.HybridScore), oneLine(r.Text, 100))
	}
	if res.Summary != nil {
		fmt.Fprintf(&b, "\nsummary: %s\n", *res.Summary)
	}
	_, err := io.WriteString(w, b.String())
	return err //nolint:wrapcheck // plain writer error
}

func formatScore(s *float64) string {
	if s == nil {
		return fmt.Sprintf("%-6s", "-")
	}
	return fmt.Sprintf("%.4f", *s)
}

// oneLine flattens newlines and cuts to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
