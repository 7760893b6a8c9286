// Package embedding provides text embedding for documents and questions.
// Embeddings are fixed-dimension float32 vectors normalized to unit length,
// deterministic for a given model.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
