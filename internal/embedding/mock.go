package embedding

import (
	"context"
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline use. Each lowercased
// word is hashed into one of the vector's buckets with a hash-derived sign and the sum is
// normalized, so identical texts embed identically and texts sharing words land close.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a hashing embedder of the given dimensions (384 when not positive).
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the hashed bag-of-words vector for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, word := range SplitWords(strings.ToLower(text)) {
		h := hash64(word)
		bucket := int(h % uint64(e.dimensions))
		if h>>63 == 1 {
			emb[bucket]--
		} else {
			emb[bucket]++
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
