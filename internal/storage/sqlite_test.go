package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/ragdoc/internal/models"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	ledger, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "db", "uploads.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestSQLiteLedger_RecordAndGet(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	u := &models.Upload{
		ID:            "u1",
		Filename:      "manual.pdf",
		TextLength:    1200,
		ChunksCreated: 4,
		FirstChunkID:  10,
	}
	if err := ledger.RecordUpload(ctx, u); err != nil {
		t.Fatal(err)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := ledger.GetUpload(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "manual.pdf" || got.ChunksCreated != 4 || got.FirstChunkID != 10 || got.TextLength != 1200 {
		t.Errorf("got %+v", got)
	}

	if _, err := ledger.GetUpload(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteLedger_RecordRequiresID(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.RecordUpload(context.Background(), &models.Upload{Filename: "a.pdf"}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestSQLiteLedger_ListAndCount(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.pdf", "b.docx", "c.pdf"} {
		u := &models.Upload{
			ID:            name,
			Filename:      name,
			ChunksCreated: 1,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := ledger.RecordUpload(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	n, err := ledger.CountUploads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountUploads = %d, want 3", n)
	}

	list, err := ledger.ListUploads(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Filename != "c.pdf" || list[1].Filename != "b.docx" {
		t.Fatalf("first page = %+v", list)
	}

	list, err = ledger.ListUploads(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Filename != "a.pdf" {
		t.Fatalf("second page = %+v", list)
	}

	list, err = ledger.ListUploads(ctx, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("past end = %v, want empty non-nil slice", list)
	}
}

func TestSQLiteLedger_FindLatestBySource(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, mtime := range []int64{100, 200} {
		u := &models.Upload{
			ID:          "w" + string(rune('0'+i)),
			Filename:    "report.pdf",
			SourceID:    "src:abc",
			SourcePath:  "/inbox/report.pdf",
			SourceMtime: mtime,
			SourceSize:  42,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := ledger.RecordUpload(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ledger.FindLatestBySource(ctx, "src:abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceMtime != 200 || got.SourcePath != "/inbox/report.pdf" {
		t.Errorf("got %+v", got)
	}

	if _, err := ledger.FindLatestBySource(ctx, "src:other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploads.db")
	ledger, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ledger.RecordUpload(context.Background(), &models.Upload{ID: "u1", Filename: "a.pdf"}); err != nil {
		t.Fatal(err)
	}
	_ = ledger.Close()

	ledger, err = NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	n, err := ledger.CountUploads(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountUploads after reopen = %d, want 1", n)
	}
}
