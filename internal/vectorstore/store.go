// Package vectorstore pairs a vector index with the chunk records it indexes
// and keeps both persisted together.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/vector"
	"go.uber.org/zap"
)

const (
	// IndexFileName holds the vector index snapshot.
	IndexFileName = "index.bin"
	// RecordsFileName holds the chunk records as a JSON array.
	RecordsFileName = "documents.json"
)

var (
	// ErrArityMismatch is returned when texts, vectors and metadata differ in length.
	ErrArityMismatch = errors.New("texts, vectors and metadata must have the same length")
	// ErrEmptyBatch is returned when Add is called with nothing to add.
	ErrEmptyBatch = errors.New("no chunks to add")
	// ErrOutOfSync is returned when the index and the records disagree in size.
	ErrOutOfSync = errors.New("index out of sync with records")
)

// PersistError reports that a mutation was applied in memory but the snapshot
// could not be written. The store remains usable.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "failed to persist vector store: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Store owns a vector index and the chunk records whose ids are the index
// positions. All mutations and snapshot writes are serialized by one lock.
type Store struct {
	dir    string
	index  vector.Index
	chunks []models.Chunk
	mu     sync.RWMutex
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for load and persist events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store backed by index and persisted under dir.
// Call Load to restore a previous snapshot.
func New(index vector.Index, dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		index:  index,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the persist directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) indexPath() string   { return filepath.Join(s.dir, IndexFileName) }
func (s *Store) recordsPath() string { return filepath.Join(s.dir, RecordsFileName) }

// Add appends chunks with their vectors, assigns ids and persists. The
// returned chunks carry their ids. A *PersistError is returned together with
// the chunks when only the snapshot write failed.
func (s *Store) Add(ctx context.Context, texts []string, vectors [][]float32, metas []models.ChunkMetadata) ([]models.Chunk, error) {
	if len(texts) != len(vectors) || len(texts) != len(metas) {
		return nil, ErrArityMismatch
	}
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.index.Count(); n != len(s.chunks) {
		return nil, fmt.Errorf("%w: %d vectors, %d records", ErrOutOfSync, n, len(s.chunks))
	}
	first, err := s.index.Add(ctx, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to add vectors: %w", err)
	}
	if first != int64(len(s.chunks)) {
		return nil, fmt.Errorf("%w: next id %d, %d records", ErrOutOfSync, first, len(s.chunks))
	}
	added := make([]models.Chunk, len(texts))
	for i := range texts {
		added[i] = models.Chunk{ID: first + int64(i), Text: texts[i], Metadata: metas[i]}
	}
	s.chunks = append(s.chunks, added...)

	if err := s.persistLocked(); err != nil {
		s.logger.Error("vector store persist failed", zap.Error(err), zap.Int("chunks", len(s.chunks)))
		return added, &PersistError{Err: err}
	}
	s.logger.Debug("vector store chunks added", zap.Int("added", len(added)), zap.Int("total", len(s.chunks)))
	return added, nil
}

// Search returns up to k chunks whose score against query is at least minScore,
// best first.
func (s *Store) Search(ctx context.Context, query []float32, k int, minScore float32) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	results := make([]models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		if h.ID < 0 || h.ID >= int64(len(s.chunks)) {
			continue
		}
		c := s.chunks[h.ID]
		results = append(results, models.ScoredChunk{ID: c.ID, Text: c.Text, Score: h.Score, Metadata: c.Metadata})
	}
	return results, nil
}

// Get returns the chunk with the given id.
func (s *Store) Get(id int64) (models.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= int64(len(s.chunks)) {
		return models.Chunk{}, false
	}
	return s.chunks[id], true
}

// Chunks returns a copy of every stored chunk in id order.
func (s *Store) Chunks() []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// IndexType returns the underlying index type.
func (s *Store) IndexType() string {
	return s.index.Type()
}

// Dimensions returns the vector dimension.
func (s *Store) Dimensions() int {
	return s.index.Dimensions()
}

// Persist writes the index and records snapshot.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// persistLocked writes both files to temporaries in the persist directory,
// syncs them and renames them over the live pair, index first.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create persist dir: %w", err)
	}
	suffix := ".tmp-" + uuid.New().String()
	tmpIndex := s.indexPath() + suffix
	tmpRecords := s.recordsPath() + suffix
	defer func() {
		_ = os.Remove(tmpIndex)
		_ = os.Remove(tmpRecords)
	}()

	if err := s.index.Save(tmpIndex); err != nil {
		return fmt.Errorf("write index snapshot: %w", err)
	}
	if err := syncFile(tmpIndex); err != nil {
		return err
	}
	if err := writeRecords(tmpRecords, s.chunks); err != nil {
		return err
	}
	if err := os.Rename(tmpIndex, s.indexPath()); err != nil {
		return fmt.Errorf("replace index snapshot: %w", err)
	}
	if err := os.Rename(tmpRecords, s.recordsPath()); err != nil {
		return fmt.Errorf("replace records snapshot: %w", err)
	}
	syncDir(s.dir)
	return nil
}

func writeRecords(path string, chunks []models.Chunk) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create records file: %w", err)
	}
	defer f.Close()
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	if err := json.NewEncoder(f).Encode(chunks); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync records file: %w", err)
	}
	return f.Close()
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open snapshot for sync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	return nil
}

// syncDir flushes directory entries after a rename. Not every platform
// supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Load restores the last snapshot. It returns true only when both files exist,
// parse, and agree with each other. Any partial or inconsistent snapshot is
// logged and the store is reset to empty.
func (s *Store) Load() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexExists := fileExists(s.indexPath())
	recordsExists := fileExists(s.recordsPath())
	if !indexExists && !recordsExists {
		s.resetLocked()
		s.logger.Info("vector store starting empty", zap.String("dir", s.dir))
		return false
	}
	if !indexExists || !recordsExists {
		s.logger.Warn("vector store snapshot incomplete, starting empty",
			zap.Bool("index_present", indexExists), zap.Bool("records_present", recordsExists))
		s.resetLocked()
		return false
	}

	if err := s.index.Load(s.indexPath()); err != nil {
		s.logger.Warn("failed to load vector index, starting empty", zap.Error(err))
		s.resetLocked()
		return false
	}
	chunks, err := readRecords(s.recordsPath())
	if err != nil {
		s.logger.Warn("failed to load chunk records, starting empty", zap.Error(err))
		s.resetLocked()
		return false
	}
	if err := checkConsistent(s.index.Count(), chunks); err != nil {
		s.logger.Warn("vector store snapshot inconsistent, starting empty", zap.Error(err))
		s.resetLocked()
		return false
	}
	s.chunks = chunks
	s.logger.Info("vector store loaded", zap.Int("chunks", len(chunks)), zap.String("dir", s.dir))
	return true
}

func readRecords(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return chunks, nil
}

func checkConsistent(indexCount int, chunks []models.Chunk) error {
	if indexCount != len(chunks) {
		return fmt.Errorf("index holds %d vectors but %d records", indexCount, len(chunks))
	}
	for i, c := range chunks {
		if c.ID != int64(i) {
			return fmt.Errorf("record at position %d has id %d", i, c.ID)
		}
	}
	return nil
}

func (s *Store) resetLocked() {
	if err := s.index.Reset(); err != nil {
		s.logger.Error("failed to reset vector index", zap.Error(err))
	}
	s.chunks = nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Close releases the index.
func (s *Store) Close() error {
	return s.index.Close()
}
