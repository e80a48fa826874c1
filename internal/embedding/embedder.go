// Package embedding maps text to fixed-length vectors: a hosted OpenAI-compatible client,
// a local ONNX model, and a deterministic hashing embedder for tests and offline use.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch returns one vector per input,
// in input order. Dimensions is fixed for the lifetime of the embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
