// Package storage defines the upload ledger persistence interface.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ragdoc/internal/models"
)

// ErrNotFound is returned when a lookup matches no ledger row.
var ErrNotFound = errors.New("not found")

// Ledger records completed ingests. It is an audit trail only; the vector
// store remains the source of truth for chunk content.
type Ledger interface {
	RecordUpload(ctx context.Context, u *models.Upload) error
	GetUpload(ctx context.Context, id string) (*models.Upload, error)
	ListUploads(ctx context.Context, offset, limit int) ([]*models.Upload, error)
	CountUploads(ctx context.Context) (int64, error)
	FindLatestBySource(ctx context.Context, sourceID string) (*models.Upload, error)
	Close() error
}
