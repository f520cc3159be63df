package summary

import (
	"context"

	"github.com/kailas-cloud/revdex/internal/domain"
)

type languageModel interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}
