// Package watcher reloads point files when they change on disk.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a debounced change of one file.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called once per settled file change.
type Handler func(ctx context.Context, event Event) error

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration
	// Match selects the files to report. All files match when nil.
	Match func(path string) bool
}

type pending struct {
	seen time.Time
	op   Operation
}

// Watcher watches directory trees and reports settled file changes.
// Handlers run one at a time in path order.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	logger    *slog.Logger
	cfg       Config

	mu      sync.Mutex
	pending map[string]*pending
	wg      sync.WaitGroup
}

// New creates a new file watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Match == nil {
		cfg.Match = func(string) bool { return true }
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		logger:    logger,
		cfg:       cfg,
		pending:   make(map[string]*pending),
	}, nil
}

// Start watches the configured trees until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.cfg.Paths {
		if err := w.AddTree(path); err != nil {
			w.logger.Warn("failed to watch path", "path", path, "error", err)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	return nil
}

// Stop stops the watcher and waits for the running handler.
func (w *Watcher) Stop() error {
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// AddTree watches dir and all directories below it.
func (w *Watcher) AddTree(dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return err
		}
		w.logger.Info("watching directory", "path", path)
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.record(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			for _, e := range w.due(now) {
				w.dispatch(ctx, e)
			}
		}
	}
}

// record folds a raw fsnotify event into the pending set. New directories
// are watched as they appear.
func (w *Watcher) record(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) && isDir(event.Name) {
		if err := w.AddTree(event.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
		}
		return
	}
	if event.Op == fsnotify.Chmod || !w.cfg.Match(event.Name) {
		return
	}

	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	merge(w.pending, event.Name, toOperation(event.Op), time.Now())
}

// merge combines a new operation with the pending one for path.
func merge(set map[string]*pending, path string, op Operation, now time.Time) {
	p, ok := set[path]
	if !ok {
		set[path] = &pending{seen: now, op: op}
		return
	}

	p.seen = now
	switch {
	case op == OpDelete:
		p.op = OpDelete
	case p.op == OpDelete:
		// removed and written again
		p.op = OpCreate
	}
}

// due removes and returns the events that have been quiet for the debounce
// period, sorted by path.
func (w *Watcher) due(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	for path, p := range w.pending {
		if now.Sub(p.seen) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)
		events = append(events, Event{Path: path, Operation: p.op})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

func (w *Watcher) dispatch(ctx context.Context, e Event) {
	w.logger.Info("processing file event", "path", e.Path, "operation", e.Operation.String())

	if err := w.handler(ctx, e); err != nil {
		w.logger.Error("handler error",
			"path", e.Path,
			"operation", e.Operation.String(),
			"error", err,
		)
	}
}

func toOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
