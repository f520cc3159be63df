package retrieval

import (
	"fmt"

	"github.com/kailas-cloud/revdex/internal/domain"
)

// Defaults for a retrieval request.
const (
	DefaultDenseBudget   = 100
	DefaultLexicalBudget = 50
	DefaultHybridBudget  = 20
	DefaultAlpha         = 0.5
	DefaultChunkSize     = 10
	// MaxBudget caps the dense fan-out of one query.
	MaxBudget = 1000
)

// Budgets are the per-stage output limits N1 >= N2 >= N3.
type Budgets struct {
	Dense   int
	Lexical int
	Hybrid  int
}

// Validate checks positivity and monotonic narrowing.
func (b Budgets) Validate() error {
	if b.Dense <= 0 || b.Lexical <= 0 || b.Hybrid <= 0 {
		return fmt.Errorf("%w: stage budgets must be positive", domain.ErrInvalidRequest)
	}
	if b.Dense > MaxBudget {
		return fmt.Errorf("%w: dense budget exceeds %d", domain.ErrInvalidRequest, MaxBudget)
	}
	if b.Lexical > b.Dense || b.Hybrid > b.Lexical {
		return fmt.Errorf("%w: stage budgets must not increase (%d, %d, %d)",
			domain.ErrInvalidRequest, b.Dense, b.Lexical, b.Hybrid)
	}
	return nil
}

// Options are the tunables of one retrieval run. Zero values take defaults.
type Options struct {
	Budgets       Budgets
	Alpha         *float64
	EnableSummary bool
	ChunkSize     int
	// Tokenizer names a registry entry explicitly; empty means resolve by channel.
	Tokenizer string
}

// DefaultOptions returns the baseline options.
func DefaultOptions() Options {
	alpha := DefaultAlpha
	return Options{
		Budgets: Budgets{
			Dense:   DefaultDenseBudget,
			Lexical: DefaultLexicalBudget,
			Hybrid:  DefaultHybridBudget,
		},
		Alpha:     &alpha,
		ChunkSize: DefaultChunkSize,
	}
}

// WithDefaults fills unset fields from defaults.
func (o Options) WithDefaults(d Options) Options {
	if o.Budgets == (Budgets{}) {
		o.Budgets = d.Budgets
	}
	if o.Alpha == nil {
		o.Alpha = d.Alpha
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.Tokenizer == "" {
		o.Tokenizer = d.Tokenizer
	}
	return o
}

// AlphaValue returns the fusion weight, DefaultAlpha when unset.
func (o Options) AlphaValue() float64 {
	if o.Alpha == nil {
		return DefaultAlpha
	}
	return *o.Alpha
}

// Validate checks budgets, alpha range and chunk size.
func (o Options) Validate() error {
	if err := o.Budgets.Validate(); err != nil {
		return err
	}
	if a := o.AlphaValue(); a < 0 || a > 1 {
		return fmt.Errorf("%w: alpha must be within [0, 1], got %v", domain.ErrInvalidRequest, a)
	}
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", domain.ErrInvalidRequest)
	}
	return nil
}

// ParseBudgets reads [dense, lexical, hybrid]. An empty slice means unset.
func ParseBudgets(b []int) (Budgets, error) {
	switch len(b) {
	case 0:
		return Budgets{}, nil
	case 3:
		return Budgets{Dense: b[0], Lexical: b[1], Hybrid: b[2]}, nil
	}
	return Budgets{}, fmt.Errorf("%w: stage_budgets must have 3 elements, got %d", domain.ErrInvalidRequest, len(b))
}
