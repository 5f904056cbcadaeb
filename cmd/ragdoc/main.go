// Package main is the ragdoc CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragdoc/internal/cli"
	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/generation"
	"github.com/hyperjump/ragdoc/internal/indexer"
	"github.com/hyperjump/ragdoc/internal/keyword"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/search"
	"github.com/hyperjump/ragdoc/internal/server"
	"github.com/hyperjump/ragdoc/internal/storage"
	"github.com/hyperjump/ragdoc/internal/vector"
	"github.com/hyperjump/ragdoc/internal/vectorstore"
	"github.com/hyperjump/ragdoc/internal/watcher"
	"github.com/hyperjump/ragdoc/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ragdoc/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists the built-in
// defaults and environment are used. Returns the config and the path that was
// loaded, empty for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ragdoc version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func mustLoad(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := mustLoad(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	opts := []server.Option{
		server.WithUploads(components.Ledger),
		server.WithKeyword(components.Keyword),
	}
	var inbox *watcher.Inbox
	if len(cfg.Watch.Directories) > 0 {
		inbox = watcher.NewInbox(&cfg.Watch, inboxIngestFunc(components.Indexer, logger), watcher.WithLogger(logger))
		if err := inbox.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
		go inbox.Scan(watchCtx)
		opts = append(opts, server.WithWatchDirectories(inbox.Directories))
	}

	srv := server.NewServer(components.Engine, components.Indexer, components.Store, cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if inbox != nil {
		inbox.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}

// inboxIngestFunc adapts the indexer to the inbox watcher. Files the ledger
// has already seen at the same size and mtime are not an error.
func inboxIngestFunc(idx *indexer.Indexer, logger *zap.Logger) watcher.IngestFunc {
	return func(ctx context.Context, path string) error {
		res, err := idx.IngestWatchedFile(ctx, path)
		if errors.Is(err, indexer.ErrUnchanged) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("inbox document indexed",
			zap.String("path", path),
			zap.Int("chunks", res.ChunksCreated),
			zap.Strings("warnings", res.Warnings),
		)
		return nil
	}
}

// reorderArgs moves any flags that appear after positional arguments to the
// front so that flag.Parse sees them; Go's flag package stops at the first
// non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuestion joins positional args so quoting is optional.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", false, "descend into subdirectories")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: ragdoc ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	path := fs.Arg(0)

	cfg, _, logger := mustLoad(*configPath, false)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Indexer.IngestDirectory(ctx, path, *recursive)
		fmt.Printf("Indexed %d file(s) from %s\n", n, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Some files failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	res, err := components.Indexer.IngestWatchedFile(ctx, path)
	if errors.Is(err, indexer.ErrUnchanged) {
		fmt.Printf("Unchanged since last ingest, skipped: %s\n", path)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = answer in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: ragdoc ask [flags] <question>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var (
		result *models.AnswerResult
		err    error
	)
	if *serverURL != "" {
		// A running server holds the Bleve and SQLite locks.
		result, err = askViaHTTP(*serverURL, question)
	} else {
		cfg, _, logger := mustLoad(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, initErr := initializeComponents(ctx, cfg, logger)
		if initErr != nil {
			logger.Fatal("Failed to initialize", zap.Error(initErr))
		}
		defer components.Close()
		result, err = components.Engine.Answer(ctx, question)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL, question string) (*models.AnswerResult, error) {
	body, err := json.Marshal(models.QueryRequest{Question: question})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var result models.AnswerResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var s cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// serverError turns a non-200 response into an error, preferring the API's
// {"error": ...} message.
func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status *cli.Status
	if *serverURL != "" {
		var err error
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger := mustLoad(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		status, err = localStatus(ctx, cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*cli.Status, error) {
	uploads, err := c.Ledger.CountUploads(ctx)
	if err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}
	s := &cli.Status{
		Chunks:           c.Store.Count(),
		VectorIndexSize:  c.Store.Count(),
		VectorIndexType:  c.Store.IndexType(),
		Dimensions:       c.Store.Dimensions(),
		Uploads:          &uploads,
		WatchDirectories: cfg.Watch.Directories,
		Config: map[string]interface{}{
			"embedding_provider": cfg.Embedding.Provider,
			"max_chunk_size":     cfg.Chunking.MaxChunkSize,
			"overlap_size":       cfg.Chunking.OverlapSize,
			"top_k":              cfg.Retrieval.TopK,
			"score_threshold":    cfg.Retrieval.MinScore(),
			"generation_model":   cfg.Generation.Model,
		},
	}
	if n, err := c.Keyword.DocCount(); err == nil {
		s.KeywordDocuments = &n
	}
	if disk, err := storage.DiskUsageBytes(cfg.Storage.PersistDir, cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		s.DiskUsageBytes = &disk
	}
	return s, nil
}

// Components holds initialized services.
type Components struct {
	Store     *vectorstore.Store
	Embedder  embedding.Embedder
	Ledger    *storage.SQLiteLedger
	Keyword   *keyword.BleveIndex
	Generator *generation.OllamaClient
	Engine    *search.Engine
	Indexer   *indexer.Indexer
}

// Close releases every component that was opened.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder
	dims := embedder.Dimensions()

	vectorIndex, err := vector.NewIndex(cfg.Vector.IndexType, dims)
	if err != nil {
		if cfg.Vector.IndexType == string(vector.IndexTypeFlat) {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		logger.Warn("failed to create vector index, falling back to flat",
			zap.String("requested_type", cfg.Vector.IndexType), zap.Error(err))
		if vectorIndex, err = vector.NewFlatIndex(dims); err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	logger.Info("vector index initialized",
		zap.String("type", vectorIndex.Type()),
		zap.Int("dimensions", dims),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	c.Store = vectorstore.New(vectorIndex, cfg.Storage.PersistDir, vectorstore.WithLogger(logger))
	c.Store.Load()

	if c.Ledger, err = storage.NewSQLiteLedger(cfg.Storage.DatabasePath); err != nil {
		return nil, fmt.Errorf("failed to initialize upload ledger: %w", err)
	}
	if c.Keyword, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath); err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	if err := c.Keyword.Sync(ctx, c.Store.Chunks()); err != nil {
		logger.Warn("keyword index sync failed", zap.Error(err))
	}

	c.Generator = generation.NewOllamaClient(&cfg.Generation, generation.WithLogger(logger))
	c.Engine = search.NewEngine(c.Store, embedder, c.Generator, &cfg.Retrieval,
		search.WithLogger(logger),
		search.WithGenerationTimeout(cfg.Generation.Timeout),
	)
	c.Indexer = indexer.NewIndexer(c.Store, embedder, &cfg.Chunking,
		indexer.WithLogger(logger),
		indexer.WithLedger(c.Ledger),
		indexer.WithKeywordIndex(c.Keyword),
		indexer.WithExtensions(cfg.Watch.Extensions),
	)
	ok = true
	return c, nil
}

func printUsage() {
	fmt.Println(`ragdoc - Document question answering over PDF and DOCX uploads

Usage:
  ragdoc server [flags]                  Start the HTTP server
  ragdoc ingest [flags] <file-or-dir>    Ingest documents directly into local storage
  ragdoc ask [flags] <question>          Ask a question
  ragdoc status [flags]                  Show index and storage status
  ragdoc version                         Show version
  ragdoc help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ragdoc/config.yaml, or ./config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path
  --recursive        Descend into subdirectories
  --output string    Output format: text or json (default: text)

Ask / Status Flags:
  --config string    Config file path (in-process mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" to run in-process.
  --output string    Output format: text or json (default: text)

Environment:
  RAGDOC_* variables override config values; a .env file in the working directory is loaded first.

Examples:
  ragdoc server
  ragdoc ingest handbook.pdf
  ragdoc ingest --recursive ./contracts
  ragdoc ask what is the refund policy
  ragdoc ask --server "" --output json "who approves expenses?"
  ragdoc status`)
}
