// Package models defines core data structures for chunks, uploads and answers.
package models

import "time"

// ChunkMetadata records where a chunk came from.
type ChunkMetadata struct {
	Filename    string `json:"filename"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// Chunk is one indexed segment of a document. ID equals the chunk's position
// in the append-only store at insertion time and is never reassigned.
type Chunk struct {
	ID       int64         `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Upload is a ledger row describing one completed ingest.
type Upload struct {
	ID            string    `json:"id" db:"id"`
	Filename      string    `json:"filename" db:"filename"`
	SourceID      string    `json:"source_id,omitempty" db:"source_id"`
	SourcePath    string    `json:"source_path,omitempty" db:"source_path"`
	SourceMtime   int64     `json:"source_mtime,omitempty" db:"source_mtime"`
	SourceSize    int64     `json:"source_size,omitempty" db:"source_size"`
	TextLength    int       `json:"text_length" db:"text_length"`
	ChunksCreated int       `json:"chunks_created" db:"chunks_created"`
	FirstChunkID  int64     `json:"first_chunk_id" db:"first_chunk_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// IngestResult summarizes a successful ingest. Warnings carry non-fatal
// failures such as a snapshot that could not be written.
type IngestResult struct {
	UploadID      string   `json:"upload_id"`
	Filename      string   `json:"filename"`
	TextLength    int      `json:"text_length"`
	ChunksCreated int      `json:"chunks_created"`
	PointsAdded   int      `json:"points_added"`
	FirstChunkID  int64    `json:"first_chunk_id"`
	Warnings      []string `json:"warnings,omitempty"`
}
