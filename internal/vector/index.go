// Package vector provides an exact in-memory vector index with Euclidean k-NN search.
package vector

import "errors"

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
// It signals a caller bug and is never retried.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrCorruptIndex is returned by Load when the index file cannot be decoded.
var ErrCorruptIndex = errors.New("corrupt index file")

// Index stores fixed-dimension vectors under positional ids (insertion order, 0-based)
// and answers nearest-neighbor queries.
type Index interface {
	Add(vectors [][]float32) error
	Search(query []float32, k int) ([]Neighbor, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
}

// Neighbor is a single search hit: the positional id of a stored vector and its
// squared Euclidean distance to the query.
type Neighbor struct {
	ID       int
	Distance float32
}
