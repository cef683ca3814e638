// Package embedding provides text embedding providers (ONNX, Ollama, mock), caching,
// and a lazily constructed process-wide provider.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when a batch has no texts.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	Close() error
}
