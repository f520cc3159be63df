package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed retrieval request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted token budget.
	ErrQuotaExceeded = errors.New("token quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure or a malformed vector.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStore signals a vector store failure (connectivity, malformed filter).
	ErrStore = errors.New("vector store error")
	// ErrMissingScore signals a document that reached fusion without a dense score.
	ErrMissingScore = errors.New("missing score")
	// ErrModel signals a language model failure.
	ErrModel = errors.New("language model error")
	// ErrSummarizerTimeout signals a language model call that exceeded its deadline.
	ErrSummarizerTimeout = errors.New("summarizer timeout")
	// ErrUnknownTokenizer signals a tokenizer name missing from the registry.
	ErrUnknownTokenizer = errors.New("unknown tokenizer")
)
