// Package vector provides append-only inner-product vector indexes.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index stores fixed-dimension vectors under sequential integer ids and
// answers top-k inner-product queries. Ids are assigned in insertion order
// starting at zero and are never reused.
type Index interface {
	// Add appends vectors and returns the id assigned to the first one.
	Add(ctx context.Context, vectors [][]float32) (int64, error)
	// Search returns at most k hits ordered by score descending, ties by lower id.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Count() int
	Dimensions() int
	// Save writes a snapshot of the index to path.
	Save(path string) error
	// Load replaces the index contents with the snapshot at path. The index
	// is left unchanged when the snapshot cannot be read completely.
	Load(path string) error
	// Reset drops every entry.
	Reset() error
	Type() string
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID    int64
	Score float32
}
