package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/ragdoc/internal/models"
)

func chunk(id int64, filename, text string) models.Chunk {
	return models.Chunk{ID: id, Text: text, Metadata: models.ChunkMetadata{Filename: filename}}
}

func newMemIndex(t *testing.T, chunks ...models.Chunk) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.IndexChunks(context.Background(), chunks); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	return idx
}

func TestBleveIndex_SearchFindsChunkText(t *testing.T) {
	idx := newMemIndex(t,
		chunk(0, "handbook.pdf", "Employees accrue vacation days monthly."),
		chunk(1, "handbook.pdf", "The Omnisyan report covers Bayes methods."),
	)
	ctx := context.Background()

	results, err := idx.Search(ctx, "Omnisyan", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != 1 {
		t.Fatalf("results = %+v, want chunk 1", results)
	}

	// no stemming: "bayes" matches "Bayes" exactly
	results, err = idx.Search(ctx, "bayes", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != 1 {
		t.Fatalf("results = %+v, want chunk 1", results)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %v, want > 0", results[0].Score)
	}
}

func TestBleveIndex_SearchEmptyAndLimit(t *testing.T) {
	idx := newMemIndex(t,
		chunk(0, "a.pdf", "alpha beta"),
		chunk(1, "a.pdf", "alpha gamma"),
		chunk(2, "a.pdf", "alpha delta"),
	)
	ctx := context.Background()

	results, err := idx.Search(ctx, "   ", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("blank query: got %d results", len(results))
	}

	results, err = idx.Search(ctx, "alpha", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("limit 2: got %d results", len(results))
	}
}

func TestBleveIndex_SearchFuzzy(t *testing.T) {
	idx := newMemIndex(t, chunk(0, "policy.docx", "Refunds are issued within thirty days."))
	ctx := context.Background()

	results, err := idx.Search(ctx, "refundz", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("exact search for typo should miss, got %+v", results)
	}

	results, err = idx.Search(ctx, "refundz", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkID != 0 {
		t.Fatalf("fuzzy results = %+v, want chunk 0", results)
	}
}

func TestBleveIndex_SearchFilenameBoost(t *testing.T) {
	idx := newMemIndex(t,
		chunk(0, "notes.pdf", "The invoice total is due."),
		chunk(1, "invoice.pdf", "Payment terms are listed below."),
	)
	ctx := context.Background()

	results, err := idx.Search(ctx, "invoice", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkID != 0 {
		t.Fatalf("text-only results = %+v, want chunk 0 only", results)
	}

	results, err = idx.Search(ctx, "invoice", 10, &SearchOptions{FilenameBoost: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("boosted results = %+v, want both chunks", results)
	}
}

func TestBleveIndex_Suggest(t *testing.T) {
	idx := newMemIndex(t,
		chunk(0, "policy.docx", "The refund policy allows returns within thirty days."),
		chunk(1, "policy.docx", "Refund requests need a receipt."),
	)

	tests := []struct {
		query   string
		want    string
		changed bool
	}{
		{"refnd polcy", "refund policy", true},
		{"refund policy", "refund policy", false},
		{"zzzzzzzz", "zzzzzzzz", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, changed := idx.Suggest(tt.query)
		if got != tt.want || changed != tt.changed {
			t.Errorf("Suggest(%q) = %q, %v; want %q, %v", tt.query, got, changed, tt.want, tt.changed)
		}
	}
}

func TestBleveIndex_ReopenKeepsChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indices", "bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.IndexChunks(ctx, []models.Chunk{chunk(7, "a.pdf", "uniqueword here")}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx, err = NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	results, err := idx.Search(ctx, "uniqueword", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkID != 7 {
		t.Fatalf("results after reopen = %+v", results)
	}
}

func TestBleveIndex_Sync(t *testing.T) {
	ctx := context.Background()
	all := []models.Chunk{
		chunk(0, "a.pdf", "first chunk"),
		chunk(1, "a.pdf", "second chunk"),
		chunk(2, "b.pdf", "third chunk"),
	}

	t.Run("fills missing chunks", func(t *testing.T) {
		idx := newMemIndex(t, all[0])
		if err := idx.Sync(ctx, all); err != nil {
			t.Fatal(err)
		}
		n, _ := idx.DocCount()
		if n != 3 {
			t.Errorf("DocCount = %d, want 3", n)
		}
	})

	t.Run("rebuilds when index has extra documents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bleve")
		idx, err := NewBleveIndex(path)
		if err != nil {
			t.Fatal(err)
		}
		defer idx.Close()
		if err := idx.IndexChunks(ctx, all); err != nil {
			t.Fatal(err)
		}
		if err := idx.Sync(ctx, all[:1]); err != nil {
			t.Fatal(err)
		}
		n, _ := idx.DocCount()
		if n != 1 {
			t.Errorf("DocCount = %d, want 1", n)
		}
		results, _ := idx.Search(ctx, "third", 10, nil)
		if len(results) != 0 {
			t.Errorf("stale chunk still searchable: %+v", results)
		}
	})

	t.Run("no-op when counts agree", func(t *testing.T) {
		idx := newMemIndex(t, all...)
		if err := idx.Sync(ctx, all); err != nil {
			t.Fatal(err)
		}
		n, _ := idx.DocCount()
		if n != 3 {
			t.Errorf("DocCount = %d, want 3", n)
		}
	})
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "ab", 2},
		{"kitten", "sitting", 3},
		{"refnd", "refund", 1},
		{"café", "cafe", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
