package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

const (
	snapshotMagic   = "RDIX"
	snapshotVersion = uint32(1)
)

// FlatIndex is a pure-Go exhaustive inner-product index. Vectors live in one
// contiguous slice so appends are amortized O(1) and search is a linear scan.
type FlatIndex struct {
	dimensions int
	data       []float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Add appends vectors. Either all vectors are added or none are.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) (int64, error) {
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return 0, fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(vec), f.dimensions)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	first := int64(len(f.data) / f.dimensions)
	for _, vec := range vectors {
		f.data = append(f.data, vec...)
	}
	return first, nil
}

// Search scans every vector and keeps the k best by inner product.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.data) / f.dimensions
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}
	best := newTopK(k)
	for i := 0; i < n; i++ {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vec := f.data[i*f.dimensions : (i+1)*f.dimensions]
		best.offer(Result{ID: int64(i), Score: float32(InnerProduct(query, vec))})
	}
	return best.sorted(), nil
}

// Count returns the number of vectors in the index.
func (f *FlatIndex) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dimensions
}

// Reset drops every vector.
func (f *FlatIndex) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = nil
	return nil
}

// Save writes the index to path and syncs it. Format (little endian):
// magic "RDIX", version uint32, dimension uint32, count uint64, then
// count*dimension float32 values.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := w.WriteString(snapshotMagic); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	header := []any{snapshotVersion, uint32(f.dimensions), uint64(len(f.data) / f.dimensions)}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	buf := make([]byte, 4)
	for _, v := range f.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	return file.Close()
}

// Load reads a snapshot written by Save. The dimension must match and the
// file must contain exactly the declared number of vectors.
func (f *FlatIndex) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	r := bufio.NewReader(file)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != snapshotMagic {
		return fmt.Errorf("not an index snapshot: %s", path)
	}
	var version, dim uint32
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != f.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, f.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	if info, err := file.Stat(); err == nil {
		want := int64(len(snapshotMagic)) + 16 + int64(count)*int64(dim)*4
		if info.Size() != want {
			return fmt.Errorf("index file size %d does not match header (want %d)", info.Size(), want)
		}
	}

	data := make([]float32, int(count)*f.dimensions)
	buf := make([]byte, 4)
	for i := range data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vectors: %w", err)
		}
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data in index file")
	}

	f.mu.Lock()
	f.data = data
	f.mu.Unlock()
	return nil
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
