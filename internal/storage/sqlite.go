package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ragdoc/internal/models"
)

var _ Ledger = (*SQLiteLedger)(nil)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		source_path TEXT NOT NULL DEFAULT '',
		source_mtime INTEGER NOT NULL DEFAULT 0,
		source_size INTEGER NOT NULL DEFAULT 0,
		text_length INTEGER NOT NULL,
		chunks_created INTEGER NOT NULL,
		first_chunk_id INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at);
	CREATE INDEX IF NOT EXISTS idx_uploads_source_id ON uploads(source_id);
	`
	_, err := db.Exec(schema)
	return err
}

const uploadColumns = `id, filename, source_id, source_path, source_mtime, source_size,
	text_length, chunks_created, first_chunk_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var u models.Upload
	err := row.Scan(&u.ID, &u.Filename, &u.SourceID, &u.SourcePath, &u.SourceMtime, &u.SourceSize,
		&u.TextLength, &u.ChunksCreated, &u.FirstChunkID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordUpload inserts an upload row. CreatedAt is set when zero.
func (s *SQLiteLedger) RecordUpload(ctx context.Context, u *models.Upload) error {
	if u.ID == "" {
		return errors.New("upload id is required")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (`+uploadColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Filename, u.SourceID, u.SourcePath, u.SourceMtime, u.SourceSize,
		u.TextLength, u.ChunksCreated, u.FirstChunkID, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record upload %s: %w", u.ID, err)
	}
	return nil
}

// GetUpload returns an upload by ID.
func (s *SQLiteLedger) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	u, err := scanUpload(s.db.QueryRowContext(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	return u, err
}

// ListUploads returns uploads newest first with offset and limit.
func (s *SQLiteLedger) ListUploads(ctx context.Context, offset, limit int) ([]*models.Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+uploadColumns+`
		 FROM uploads ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []*models.Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// CountUploads returns the total number of recorded uploads.
func (s *SQLiteLedger) CountUploads(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&count)
	return count, err
}

// FindLatestBySource returns the most recent upload for a watched source file.
func (s *SQLiteLedger) FindLatestBySource(ctx context.Context, sourceID string) (*models.Upload, error) {
	u, err := scanUpload(s.db.QueryRowContext(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE source_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	return u, err
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
