package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/extract"
	"github.com/hyperjump/ragdoc/internal/fileid"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/vectorstore"
)

var (
	// ErrEmptyDocument is returned when a document has no text to ingest.
	ErrEmptyDocument = errors.New("no text content found in document")
	// ErrUnchanged is returned by IngestWatchedFile for a file already ingested
	// with the same modification time and size.
	ErrUnchanged = errors.New("file unchanged since last ingest")
)

// ChunkIndexer receives chunks after they are stored.
type ChunkIndexer interface {
	IndexChunks(ctx context.Context, chunks []models.Chunk) error
}

// Ledger records completed ingests.
type Ledger interface {
	RecordUpload(ctx context.Context, u *models.Upload) error
	FindLatestBySource(ctx context.Context, sourceID string) (*models.Upload, error)
}

// Indexer turns document text into stored, embedded chunks.
type Indexer struct {
	store        *vectorstore.Store
	embedder     embedding.Embedder
	chunker      *Chunker
	extractor    *extract.Extractor
	keywordIndex ChunkIndexer
	ledger       Ledger
	extensions   []string
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex mirrors ingested chunks into a keyword index.
func WithKeywordIndex(k ChunkIndexer) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithLedger records every ingest in an upload ledger.
func WithLedger(l Ledger) IndexerOption {
	return func(idx *Indexer) { idx.ledger = l }
}

// WithExtensions limits IngestDirectory to the given extensions.
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) {
		if len(exts) > 0 {
			idx.extensions = exts
		}
	}
}

// NewIndexer creates an indexer writing to store.
func NewIndexer(store *vectorstore.Store, embedder embedding.Embedder, cfg *config.ChunkingConfig, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:      store,
		embedder:   embedder,
		chunker:    NewChunker(cfg.MaxChunkSize, cfg.OverlapSize),
		extractor:  extract.NewExtractor(),
		extensions: extract.SupportedExtensions(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest chunks text, embeds all chunks in one batch and appends them to the
// store. Re-ingesting the same filename adds duplicate chunks.
func (idx *Indexer) Ingest(ctx context.Context, text, filename string) (*models.IngestResult, error) {
	return idx.ingest(ctx, text, filename, nil)
}

func (idx *Indexer) ingest(ctx context.Context, text, filename string, src *fileid.Fingerprint) (*models.IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	texts, err := idx.chunker.Chunk(text)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk %s: %w", filename, err)
	}
	metas := make([]models.ChunkMetadata, len(texts))
	for i := range texts {
		metas[i] = models.ChunkMetadata{Filename: filename, ChunkIndex: i, TotalChunks: len(texts)}
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	result := &models.IngestResult{
		UploadID:      uuid.NewString(),
		Filename:      filename,
		TextLength:    utf8.RuneCountInString(text),
		ChunksCreated: len(texts),
	}

	chunks, err := idx.store.Add(ctx, texts, vectors, metas)
	var persistErr *vectorstore.PersistError
	switch {
	case errors.As(err, &persistErr):
		result.Warnings = append(result.Warnings, "index snapshot not saved: "+persistErr.Err.Error())
	case err != nil:
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	result.PointsAdded = len(chunks)
	result.FirstChunkID = chunks[0].ID

	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.IndexChunks(ctx, chunks); err != nil {
			idx.logger.Warn("keyword indexing failed", zap.String("filename", filename), zap.Error(err))
			result.Warnings = append(result.Warnings, "keyword index not updated: "+err.Error())
		}
	}
	if idx.ledger != nil {
		u := &models.Upload{
			ID:            result.UploadID,
			Filename:      filename,
			TextLength:    result.TextLength,
			ChunksCreated: result.ChunksCreated,
			FirstChunkID:  result.FirstChunkID,
		}
		if src != nil {
			u.SourceID, u.SourcePath = src.SourceID, src.Path
			u.SourceMtime, u.SourceSize = src.Mtime, src.Size
		}
		if err := idx.ledger.RecordUpload(ctx, u); err != nil {
			idx.logger.Warn("upload ledger write failed", zap.String("filename", filename), zap.Error(err))
			result.Warnings = append(result.Warnings, "upload not recorded: "+err.Error())
		}
	}

	idx.logger.Info("document ingested",
		zap.String("filename", filename),
		zap.String("upload_id", result.UploadID),
		zap.Int("text_length", result.TextLength),
		zap.Int("chunks", result.ChunksCreated),
		zap.Int64("first_chunk_id", result.FirstChunkID),
	)
	return result, nil
}

// IngestFile extracts the file at path and ingests it under filename. The
// extension of filename decides the format and is checked before the file is read.
func (idx *Indexer) IngestFile(ctx context.Context, path, filename string) (*models.IngestResult, error) {
	if filename == "" {
		filename = filepath.Base(path)
	}
	text, err := idx.extractFile(path, filename)
	if err != nil {
		return nil, err
	}
	return idx.ingest(ctx, text, filename, nil)
}

func (idx *Indexer) extractFile(path, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extract.Supported(ext) {
		return "", fmt.Errorf("%w: %q", extract.ErrUnsupportedType, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return idx.extractor.ExtractBytes(content, ext)
}

// IngestWatchedFile ingests a file found on disk, recording its source
// fingerprint. It returns ErrUnchanged when the ledger already has the same
// version of the file.
func (idx *Indexer) IngestWatchedFile(ctx context.Context, path string) (*models.IngestResult, error) {
	fp, err := fileid.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if idx.ledger != nil {
		prev, err := idx.ledger.FindLatestBySource(ctx, fp.SourceID)
		if err == nil && fp.Matches(prev.SourceMtime, prev.SourceSize) {
			idx.logger.Debug("skipping unchanged file", zap.String("path", fp.Path))
			return nil, ErrUnchanged
		}
	}
	text, err := idx.extractFile(fp.Path, fp.Path)
	if err != nil {
		return nil, err
	}
	return idx.ingest(ctx, text, filepath.Base(fp.Path), &fp)
}

// IngestDirectory ingests every regular file in dir with an accepted
// extension. Unchanged files are skipped; other failures are logged and
// returned joined once the walk completes.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	var (
		n    int
		errs []error
	)
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !extensionAllowed(filepath.Ext(path), idx.extensions) {
			return nil
		}
		_, ingestErr := idx.IngestWatchedFile(ctx, path)
		switch {
		case errors.Is(ingestErr, ErrUnchanged):
		case ingestErr != nil:
			idx.logger.Warn("ingest failed", zap.String("path", path), zap.Error(ingestErr))
			errs = append(errs, fmt.Errorf("%s: %w", path, ingestErr))
		default:
			n++
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return n, errors.Join(errs...)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
