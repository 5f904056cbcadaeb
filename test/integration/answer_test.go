// Package integration exercises ingest and answering against real storage and indices.
package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/generation"
	"github.com/hyperjump/ragdoc/internal/indexer"
	"github.com/hyperjump/ragdoc/internal/keyword"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/search"
	"github.com/hyperjump/ragdoc/internal/storage"
	"github.com/hyperjump/ragdoc/internal/vector"
	"github.com/hyperjump/ragdoc/internal/vectorstore"
)

const dims = 128

func docx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestIntegration_IngestAndAnswer(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			PersistDir:     filepath.Join(dir, "vectors"),
			DatabasePath:   filepath.Join(dir, "db.sqlite"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
		},
		Chunking: config.ChunkingConfig{MaxChunkSize: 120, OverlapSize: 50},
	}
	config.ApplyDefaults(cfg)

	idx, err := vector.NewFlatIndex(dims)
	if err != nil {
		t.Fatal(err)
	}
	store := vectorstore.New(idx, cfg.Storage.PersistDir)
	defer store.Close()

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	kwIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	embedder := embedding.NewHashEmbedder(dims)
	var prompts []string
	gen := generation.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "Two reviewers.", nil
	})
	engine := search.NewEngine(store, embedder, gen, &cfg.Retrieval)
	ix := indexer.NewIndexer(store, embedder, &cfg.Chunking, indexer.WithLedger(ledger), indexer.WithKeywordIndex(kwIndex))
	ctx := context.Background()

	handbook := "Every pull request needs approval from two reviewers. " +
		"Reviews focus on correctness and readability. " +
		"Tests must pass before merging. " +
		"Hotfixes may skip the second review with approval from the on-call lead."
	res, err := ix.Ingest(ctx, handbook, "engineering-handbook.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunksCreated < 2 {
		t.Fatalf("expected the handbook to span several chunks, got %d", res.ChunksCreated)
	}

	docDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docDir, "parking.docx"), docx("Electric vehicle chargers in the garage are free."), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docDir, "readme.txt"), []byte("not ingested"), 0644); err != nil {
		t.Fatal(err)
	}
	n, err := ix.IngestDirectory(ctx, docDir, false)
	if err != nil || n != 1 {
		t.Fatalf("IngestDirectory = %d, %v", n, err)
	}

	answer, err := engine.Answer(ctx, "Every pull request needs approval from two reviewers.")
	if err != nil {
		t.Fatal(err)
	}
	if answer.Outcome != models.OutcomeGenerated || answer.Answer != "Two reviewers." {
		t.Errorf("answer = %+v", answer)
	}
	if len(answer.Sources) == 0 || answer.Sources[0] != "engineering-handbook.pdf" {
		t.Errorf("sources = %v", answer.Sources)
	}
	if len(prompts) != 1 || !strings.Contains(prompts[0], "two reviewers") {
		t.Errorf("prompt did not carry the context: %v", prompts)
	}

	hits, err := kwIndex.Search(ctx, "chargers", 5, nil)
	if err != nil || len(hits) != 1 {
		t.Fatalf("keyword hits = %v, %v", hits, err)
	}
	if c, ok := store.Get(hits[0].ChunkID); !ok || c.Metadata.Filename != "parking.docx" {
		t.Errorf("keyword hit chunk = %+v", c)
	}

	total, err := ledger.CountUploads(ctx)
	if err != nil || total != 2 {
		t.Errorf("ledger uploads = %d, %v", total, err)
	}
}
