// Package watcher ingests documents dropped into inbox directories, using
// fsnotify with per-file debouncing.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/ragdoc/internal/config"
)

const defaultDebounce = 400 * time.Millisecond

// IngestFunc ingests one file. It is never called concurrently.
type IngestFunc func(ctx context.Context, path string) error

// Inbox watches directories and ingests new or rewritten files.
type Inbox struct {
	dirs       []string
	extensions []string
	recursive  bool
	ingest     IngestFunc
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	ctx     context.Context
	pending map[string]*time.Timer
	started bool
	stopped bool

	ingestMu sync.Mutex
	inflight sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// NewInbox creates an inbox for the configured directories.
func NewInbox(cfg *config.WatchConfig, ingest IngestFunc, opts ...Option) *Inbox {
	in := &Inbox{
		dirs:       cleanDirs(cfg.Directories),
		extensions: cfg.Extensions,
		recursive:  cfg.RecursiveOrDefault(),
		ingest:     ingest,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func cleanDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d == "" {
			continue
		}
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		out = append(out, filepath.Clean(d))
	}
	return out
}

// Directories returns the watched inbox roots.
func (in *Inbox) Directories() []string {
	return append([]string(nil), in.dirs...)
}

// Start creates missing inbox directories and begins watching. Events are
// processed until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	in.fsw = fsw
	for _, dir := range in.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := in.addTreeLocked(dir); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	in.ctx = ctx
	in.started = true
	in.logger.Info("inbox watcher started",
		zap.Strings("directories", in.dirs),
		zap.Strings("extensions", in.extensions),
		zap.Bool("recursive", in.recursive),
	)
	go in.run(ctx, fsw)
	return nil
}

func (in *Inbox) addTreeLocked(dir string) error {
	if !in.recursive {
		return in.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return in.fsw.Add(path)
		}
		return nil
	})
}

func (in *Inbox) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			in.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			in.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

func (in *Inbox) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	in.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			in.handleNewDirectory(path)
			return
		}
		if matchExtension(path, in.extensions) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.cancel(path)
	}
}

func (in *Inbox) handleNewDirectory(dir string) {
	if !in.recursive {
		return
	}
	in.mu.Lock()
	if in.fsw != nil {
		if err := in.addTreeLocked(dir); err != nil {
			in.logger.Warn("inbox failed to watch directory", zap.String("path", dir), zap.Error(err))
		}
	}
	in.mu.Unlock()
	// files may have landed before the watch was added
	in.walk(dir, in.schedule)
}

func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.started {
		return
	}
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		ctx := in.ctx
		in.mu.Unlock()
		in.ingestOne(ctx, path)
	})
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
		delete(in.pending, path)
	}
}

// track registers an ingest with Stop. It reports false once Stop has begun.
func (in *Inbox) track() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.stopped {
		return false
	}
	in.inflight.Add(1)
	return true
}

func (in *Inbox) ingestOne(ctx context.Context, path string) {
	if !in.track() {
		return
	}
	defer in.inflight.Done()
	in.ingestMu.Lock()
	defer in.ingestMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if err := in.ingest(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		in.logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	in.logger.Debug("inbox file processed", zap.String("path", path))
}

// Scan ingests every matching file already present in the inbox directories.
func (in *Inbox) Scan(ctx context.Context) {
	for _, dir := range in.dirs {
		in.walk(dir, func(path string) { in.ingestOne(ctx, path) })
	}
}

func (in *Inbox) walk(root string, fn func(path string)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !in.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && matchExtension(path, in.extensions) {
			fn(path)
		}
		return nil
	})
}

// Stop stops watching, drops pending files and waits for a running ingest.
func (in *Inbox) Stop() {
	in.mu.Lock()
	if !in.started {
		in.mu.Unlock()
		return
	}
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
	_ = in.fsw.Close()
	in.fsw = nil
	in.started = false
	in.stopped = true
	in.mu.Unlock()
	in.stopOnce.Do(func() { close(in.done) })
	in.inflight.Wait()
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
