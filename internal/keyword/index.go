// Package keyword provides a Bleve full-text index over chunk texts.
package keyword

import (
	"context"

	"github.com/hyperjump/ragdoc/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FilenameBoost multiplies matches in the source filename. Values <= 1 disable
	// filename matching entirely.
	FilenameBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (default 1).
	FuzzyEnabled bool
	Fuzziness    int
}

// Result is a single keyword hit referring to a chunk id in the vector store.
type Result struct {
	ChunkID int64
	Score   float64
}

// ChunkIndex defines keyword operations over ingested chunks.
type ChunkIndex interface {
	IndexChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error)
	// Suggest returns a corrected query built from indexed terms, and whether
	// any term was changed.
	Suggest(query string) (string, bool)
	// Sync makes the index hold exactly the given chunks when the document
	// count disagrees.
	Sync(ctx context.Context, chunks []models.Chunk) error
	DocCount() (uint64, error)
	Close() error
}
