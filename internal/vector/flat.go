package vector

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	fileMagic   = "KVEC"
	fileVersion = uint32(1)
)

// FlatIndex is an exact index: every query scans all stored vectors.
// Vector ids are their insertion positions and are never reused.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

var _ Index = (*FlatIndex)(nil)

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Add appends vectors in order. The batch is validated before anything is stored,
// so a mismatched vector leaves the index unchanged.
func (f *FlatIndex) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != f.dimensions {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(v), f.dimensions)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		vec := make([]float32, f.dimensions)
		copy(vec, v)
		f.vectors = append(f.vectors, vec)
	}
	return nil
}

// Search returns the k stored vectors closest to query by squared Euclidean distance,
// closest first. Equal distances are ordered by lower id.
func (f *FlatIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	h := make(worstFirst, 0, k)
	for id, vec := range f.vectors {
		n := Neighbor{ID: id, Distance: SquaredL2(query, vec)}
		if len(h) < k {
			heap.Push(&h, n)
			continue
		}
		if closer(n, h[0]) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}
	result := []Neighbor(h)
	sort.Slice(result, func(i, j int) bool { return closer(result[i], result[j]) })
	return result, nil
}

// closer reports whether a ranks ahead of b.
func closer(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// worstFirst is a max-heap of neighbors; the root is the one that ranks last.
type worstFirst []Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the fixed vector length.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Save writes the index to path, creating the directory if needed. The file is written
// to a temporary sibling and renamed into place.
// Format (little-endian): magic "KVEC", version (4), dimension (4), count (8),
// then count*dimension float32 values.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := f.writeTo(w); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

func (f *FlatIndex) writeTo(w io.Writer) error {
	if _, err := io.WriteString(w, fileMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []any{fileVersion, uint32(f.dimensions), uint64(len(f.vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, vec := range f.vectors {
		if _, err := w.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load replaces the index contents with the file at path. A missing file is not an
// error and leaves the index unchanged. A different dimension or an undecodable file
// returns an error, also leaving the index unchanged.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	vectors, err := readVectors(bufio.NewReader(file), f.dimensions)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.vectors = vectors
	f.mu.Unlock()
	return nil
}

func readHeader(r io.Reader) (dim uint32, n uint64, err error) {
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fileMagic {
		return 0, 0, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, 0, fmt.Errorf("%w: read version: %v", ErrCorruptIndex, err)
	}
	if version != fileVersion {
		return 0, 0, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return 0, 0, fmt.Errorf("%w: read dimensions: %v", ErrCorruptIndex, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, 0, fmt.Errorf("%w: read count: %v", ErrCorruptIndex, err)
	}
	return dim, n, nil
}

func readVectors(r io.Reader, dimensions int) ([][]float32, error) {
	dim, n, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, dimensions)
	}
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: implausible count %d", ErrCorruptIndex, n)
	}
	capacity := n
	if capacity > 1<<16 {
		capacity = 1 << 16
	}
	vectors := make([][]float32, 0, capacity)
	buf := make([]byte, dimensions*4)
	for i := uint64(0); i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: read vector %d: %v", ErrCorruptIndex, i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	var extra [1]byte
	if _, err := r.Read(extra[:]); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrCorruptIndex)
	}
	return vectors, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
