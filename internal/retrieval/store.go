// Package retrieval composes an embedder, a flat vector index and a chunk store behind a
// text-in, chunks-out interface.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hyperjump/kotae/internal/chunkstore"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// ChunksSuffix is appended to a snapshot path to name its chunk sidecar file.
const ChunksSuffix = ".chunks"

// ErrCorruptSnapshot is returned by Load when the index and chunk files cannot be
// restored as a consistent pair.
var ErrCorruptSnapshot = errors.New("corrupt retrieval snapshot")

// Hit is a retrieved chunk with its squared L2 distance to the query.
type Hit struct {
	Chunk    models.Chunk
	Distance float32
}

// Store keeps the vector index and the chunk store the same length: vector id i embeds
// chunk i. All mutation goes through AddDocuments and Load.
type Store struct {
	embedder   embedding.Embedder
	dimensions int
	index      *vector.FlatIndex
	chunks     *chunkstore.Store
	logger     *zap.Logger
	mu         sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store whose dimension is read once from embedder.
func NewStore(embedder embedding.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	index, err := vector.NewFlatIndex(embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	s := &Store{
		embedder:   embedder,
		dimensions: index.Dimensions(),
		index:      index,
		chunks:     chunkstore.New(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddDocuments embeds all chunk texts in one batch and appends the vectors and chunks.
// An empty batch is a no-op and makes no embedding call. On any failure neither the
// index nor the chunk store changes.
func (s *Store) AddDocuments(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	// Add validates every vector before storing any.
	if err := s.index.Add(vectors); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	first := s.chunks.Append(chunks...)
	s.logger.Debug("added chunks",
		zap.Int("count", len(chunks)),
		zap.Int("first_id", first),
		zap.Int("total", s.chunks.Len()))
	return nil
}

// SimilaritySearch returns up to k chunks closest to query, best first. An empty store
// or a k that clamps to zero returns nothing without calling the embedder.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	hits, err := s.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk
	}
	return out, nil
}

// SearchWithScores is SimilaritySearch with distances.
func (s *Store) SearchWithScores(ctx context.Context, query string, k int) ([]Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.chunks.Len()
	if size == 0 {
		return []Hit{}, nil
	}
	if k > size {
		k = size
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	neighbors, err := s.index.Search(vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		c, err := s.chunks.Get(n.ID)
		if err != nil {
			return nil, fmt.Errorf("map neighbor: %w", err)
		}
		hits = append(hits, Hit{Chunk: c, Distance: n.Distance})
	}
	return hits, nil
}

// Save writes the index to path and the chunks to path+ChunksSuffix.
func (s *Store) Save(path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Save(path); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if err := s.chunks.Save(path + ChunksSuffix); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	s.logger.Debug("saved snapshot", zap.String("path", path), zap.Int("chunks", s.chunks.Len()))
	return nil
}

// Load replaces the store contents with the snapshot at path. A missing index file is a
// no-op. A dimension mismatch, an undecodable file, a missing chunk file or a count
// disagreement between the two files is an error and leaves the store unchanged.
func (s *Store) Load(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no snapshot to load", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("stat snapshot: %w", err)
	}

	index, err := vector.NewFlatIndex(s.dimensions)
	if err != nil {
		return err
	}
	if err := index.Load(path); err != nil {
		if errors.Is(err, vector.ErrCorruptIndex) {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		return fmt.Errorf("load index: %w", err)
	}
	chunks, err := chunkstore.Load(path + ChunksSuffix)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if index.Size() != chunks.Len() {
		return fmt.Errorf("%w: index has %d vectors, chunk file has %d", ErrCorruptSnapshot, index.Size(), chunks.Len())
	}

	s.mu.Lock()
	s.index = index
	s.chunks = chunks
	s.mu.Unlock()
	s.logger.Debug("loaded snapshot", zap.String("path", path), zap.Int("chunks", chunks.Len()))
	return nil
}

// RemoveSnapshot deletes the files written by Save. Missing files are ignored.
func RemoveSnapshot(path string) error {
	if path == "" {
		return nil
	}
	for _, p := range []string{path, path + ChunksSuffix} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove snapshot file: %w", err)
		}
	}
	return nil
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks.Len()
}

// Dimensions returns the embedding dimension fixed at construction.
func (s *Store) Dimensions() int {
	return s.dimensions
}
