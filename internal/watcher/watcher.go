// Package watcher watches an inbox directory and feeds dropped PDFs into
// the pipeline. Each stable new file is registered and structured; the
// original inbox file is removed on success.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
)

// defaultDebounce is how long a file must be quiet before it is picked up.
// Browsers and scrapers write PDFs incrementally; acting on the first write
// event would register a truncated file.
const defaultDebounce = 2 * time.Second

// Watcher ingests PDFs dropped into an inbox directory.
type Watcher struct {
	inboxDir string
	register driving.RegisterService
	pipeline driving.PipelineService
	debounce time.Duration

	// pending maps path to the timer that fires once the file is quiet.
	pending map[string]*time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the quiet period before a file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over inboxDir.
func New(inboxDir string, register driving.RegisterService, pipeline driving.PipelineService, opts ...Option) (*Watcher, error) {
	if inboxDir == "" {
		return nil, fmt.Errorf("%w: inbox directory is required", domain.ErrInvalidArgument)
	}

	w := &Watcher{
		inboxDir: inboxDir,
		register: register,
		pipeline: pipeline,
		debounce: defaultDebounce,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches the inbox until ctx is cancelled. Files already present at
// startup are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.inboxDir, 0700); err != nil {
		return fmt.Errorf("creating inbox directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fs watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.inboxDir); err != nil {
		return fmt.Errorf("watching inbox: %w", err)
	}

	// Sweep files that arrived before the watch started.
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.inboxDir, entry.Name())
		if isCandidate(path) {
			w.ingest(ctx, path)
		}
	}

	ready := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, ready)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)

		case path := <-ready:
			delete(w.pending, path)
			w.ingest(ctx, path)
		}
	}
}

// handleEvent schedules ingestion for create/write events on candidate
// files, resetting the quiet timer on every new write.
func (w *Watcher) handleEvent(event fsnotify.Event, ready chan<- string) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !isCandidate(event.Name) {
		return
	}
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}

	path := event.Name
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		ready <- path
	})
}

// ingest registers the PDF and runs structuring. A duplicate file (same
// content hash) is treated as already ingested and removed from the inbox.
func (w *Watcher) ingest(ctx context.Context, path string) {
	logger.Info("ingesting %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("reading %s: %v", path, err)
		return
	}

	id, err := w.register.Register(ctx, filepath.Base(path), data, driving.RegisterMetadata{})
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			// Not a valid PDF; leave it for the user to inspect.
			logger.Warn("skipping %s: %v", path, err)
			return
		}
		logger.Warn("registering %s: %v", path, err)
		return
	}

	report, err := w.pipeline.RunStructuring(ctx, id)
	if err == nil && report != nil {
		err = report.Err
	}
	if err != nil {
		logger.Warn("structuring %s: %v", id, err)
		// Keep the inbox file so the failure is visible; the document
		// itself is registered and can be retried.
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("removing %s: %v", path, err)
	}
	logger.Info("ingested %s as document %s", filepath.Base(path), id)
}

// isCandidate reports whether path looks like a PDF worth ingesting.
// Hidden files and partial downloads are skipped.
func isCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
