package ingest

import (
	"context"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/domain/review"
)

// Writer persists reviews with their embeddings.
type Writer interface {
	Upsert(ctx context.Context, reviews []review.Review) error
}

// IndexEnsurer creates the backing index or table when missing.
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context) error
}

// Embedder vectorizes review texts. Batch support is optional.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
