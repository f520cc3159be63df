package retrieval

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
)

// MaxQueryLength is the maximum allowed query length in bytes.
const MaxQueryLength = 4096

// Request is a validated retrieval query.
type Request struct {
	query   string
	filters filter.Expression
	opts    Options
}

// NewRequest validates the query and options. Options must already carry defaults.
func NewRequest(query string, filters filter.Expression, opts Options) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if err := opts.Validate(); err != nil {
		return Request{}, err
	}
	return Request{query: query, filters: filters, opts: opts}, nil
}

// Query returns the natural-language question.
func (r Request) Query() string { return r.query }

// Filters returns the dense-stage pre-filter.
func (r Request) Filters() filter.Expression { return r.filters }

// Options returns the run options.
func (r Request) Options() Options { return r.opts }
