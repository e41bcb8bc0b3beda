package caresearch

import "context"

// Embedder vectorizes text for semantic search. Implementations call an
// embedding provider of the consumer's choice.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult is the public embedding outcome.
type EmbeddingResult struct {
	Embedding   []float32
	Provider    string
	TotalTokens int
}
