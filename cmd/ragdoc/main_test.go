package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/server"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is the refund policy", "-output", "json"},
			expected: []string{"-output", "json", "what is the refund policy"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "what is the refund policy"},
			expected: []string{"-output", "json", "what is the refund policy"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is the refund policy"},
			expected: []string{"what is the refund policy"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"refund", "policy", "-server", ""},
			expected: []string{"-server", "", "refund", "policy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"refunds"}, "refunds"},
		{"multiple words", []string{"refund", "policy?"}, "refund policy?"},
		{"single quoted phrase", []string{"refund policy?"}, "refund policy?"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
retrieval:
  score_threshold: 0.5
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || cfg.Retrieval.MinScore() != 0.5 {
		t.Errorf("unexpected config: %+v %+v", cfg.Server, cfg.Retrieval)
	}
}

func TestLoadConfig_defaultsWithDotEnv(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RAGDOC_MAX_CHUNK_SIZE=321\n"), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Cleanup(func() { _ = os.Unsetenv("RAGDOC_MAX_CHUNK_SIZE") })

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path = %q, want empty for defaults", resolved)
	}
	if cfg.Chunking.MaxChunkSize != 321 {
		t.Errorf("max chunk size = %d, want 321 from .env", cfg.Chunking.MaxChunkSize)
	}
	if cfg.Server.Port != 8000 || cfg.Retrieval.MinScore() != 0.3 {
		t.Errorf("defaults not applied: %+v %+v", cfg.Server, cfg.Retrieval)
	}
}

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.PersistDir = filepath.Join(dir, "vectors")
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "uploads.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 64
	cfg.Embedding.CacheSize = 16
	cfg.Generation.URL = "http://127.0.0.1:1/api/generate"
	config.ApplyDefaults(cfg)
	return cfg
}

func writeDocx(t *testing.T, path string, text string) {
	t.Helper()
	if err := os.WriteFile(path, docxBytes(text), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestInitializeComponents_RestoresFromDisk(t *testing.T) {
	cfg := localConfig(t)
	ctx := context.Background()
	docPath := filepath.Join(t.TempDir(), "policy.docx")
	writeDocx(t, docPath, "Refunds are accepted within 30 days.")

	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Indexer.IngestWatchedFile(ctx, docPath)
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunksCreated != 1 || len(res.Warnings) != 0 {
		t.Fatalf("ingest = %+v", res)
	}
	c.Close()

	// Remove the keyword index so startup has to rebuild it from the snapshot.
	if err := os.RemoveAll(cfg.Storage.BleveIndexPath); err != nil {
		t.Fatal(err)
	}
	c, err = initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Store.Count() != 1 {
		t.Errorf("restored store count = %d, want 1", c.Store.Count())
	}
	if n, _ := c.Keyword.DocCount(); n != 1 {
		t.Errorf("keyword docs = %d, want 1", n)
	}

	status, err := localStatus(ctx, cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	if status.Chunks != 1 || status.Uploads == nil || *status.Uploads != 1 || status.DiskUsageBytes == nil {
		t.Errorf("status = %+v", status)
	}

	// The generation backend is unreachable, so the answer falls back to the context.
	answer, err := c.Engine.Answer(ctx, "Refunds are accepted within 30 days.")
	if err != nil {
		t.Fatal(err)
	}
	if !answer.ContextFound || !strings.Contains(answer.Answer, "Refunds are accepted") {
		t.Errorf("answer = %+v", answer)
	}
}

func TestInitializeComponents_UnknownProvider(t *testing.T) {
	cfg := localConfig(t)
	cfg.Embedding.Provider = "word2vec"
	if _, err := initializeComponents(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown embedding provider")
	}
}

func TestInboxIngestFunc_SkipsUnchanged(t *testing.T) {
	cfg := localConfig(t)
	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	docPath := filepath.Join(t.TempDir(), "memo.docx")
	writeDocx(t, docPath, "The office closes at six.")
	ingest := inboxIngestFunc(c.Indexer, zap.NewNop())
	for i := 0; i < 2; i++ {
		if err := ingest(ctx, docPath); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	if c.Store.Count() != 1 {
		t.Errorf("store count = %d, want 1 after an unchanged re-ingest", c.Store.Count())
	}
	if err := ingest(ctx, filepath.Join(t.TempDir(), "missing.docx")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestAskAndStatusViaHTTP(t *testing.T) {
	cfg := localConfig(t)
	cfg.Server.RateLimitPerHour = -1
	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Indexer.Ingest(ctx, "Remote work is allowed on Fridays.", "handbook.pdf"); err != nil {
		t.Fatal(err)
	}

	srv := server.NewServer(c.Engine, c.Indexer, c.Store, cfg, zap.NewNop(), server.WithUploads(c.Ledger))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	answer, err := askViaHTTP(ts.URL+"/", "Remote work is allowed on Fridays.")
	if err != nil {
		t.Fatal(err)
	}
	if !answer.ContextFound || len(answer.Sources) != 1 || answer.Sources[0] != "handbook.pdf" {
		t.Errorf("answer = %+v", answer)
	}

	_, err = askViaHTTP(ts.URL, strings.Repeat("x", 1001))
	if err == nil || !strings.Contains(err.Error(), "Question too long") {
		t.Errorf("expected API error message, got %v", err)
	}

	status, err := statusViaHTTP(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if status.Chunks != 1 || status.VectorIndexType != "flat" || status.Uploads == nil || *status.Uploads != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := statusViaHTTP(ts.URL)
	if err == nil || !strings.Contains(err.Error(), "502: gateway exploded") {
		t.Errorf("err = %v", err)
	}
	_, err = statusViaHTTP("http://127.0.0.1:1")
	if err == nil || errors.Unwrap(err) == nil {
		t.Errorf("expected wrapped request error, got %v", err)
	}
}
