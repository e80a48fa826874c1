// Package chunkstore holds chunk records in insertion order, positionally aligned with
// the ids of a vector index.
package chunkstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrOutOfRange is returned by Get for a position that holds no chunk.
var ErrOutOfRange = errors.New("chunk id out of range")

// maxLineBytes bounds a single JSON line when loading; chunks are a few KB at most.
const maxLineBytes = 16 << 20

// Store is an append-only sequence of chunks. A chunk's id is its position.
type Store struct {
	chunks []models.Chunk
	mu     sync.RWMutex
}

// New returns an empty store.
func New() *Store {
	return &Store{chunks: make([]models.Chunk, 0)}
}

// Append adds chunks in order and returns the position of the first one, which equals
// the store length before the call.
func (s *Store) Append(chunks ...models.Chunk) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.chunks)
	s.chunks = append(s.chunks, chunks...)
	return first
}

// Get returns the chunk at position id.
func (s *Store) Get(id int) (models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.chunks) {
		return models.Chunk{}, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, id, len(s.chunks))
	}
	return s.chunks[id], nil
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// All returns a copy of the stored chunks in positional order.
func (s *Store) All() []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Chunk(nil), s.chunks...)
}

// Save writes the chunks to path as JSON Lines, one chunk per line in positional order.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for i, c := range s.chunks {
		if err := enc.Encode(c); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("encode chunk %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush chunk file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chunk file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename chunk file: %w", err)
	}
	return nil
}

// Load reads a file written by Save into a new store. Unlike the vector index,
// a missing file is an error here: callers decide whether absence is acceptable.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	defer f.Close()

	s := New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var c models.Chunk
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			return nil, fmt.Errorf("decode chunk on line %d: %w", line, err)
		}
		s.chunks = append(s.chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunk file: %w", err)
	}
	return s, nil
}
