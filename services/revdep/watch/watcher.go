// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch turns file system events under a project root into
// debounced batches, so long-lived callers can drop cached dependency
// tables when the sources they were built from change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/revdep/services/revdep/extract"
)

// ErrNotDirectory is returned when the watch root is not a directory.
var ErrNotDirectory = errors.New("watch root is not a directory")

// Op is the kind of change observed for a path.
type Op int

const (
	// OpCreate indicates a path was created.
	OpCreate Op = iota

	// OpWrite indicates a file was modified.
	OpWrite

	// OpRemove indicates a path was deleted.
	OpRemove

	// OpRename indicates a path was renamed away.
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one observed change.
type Change struct {
	// Path is the absolute path of the changed file or directory.
	Path string

	// Op is the type of change.
	Op Op

	// Time is when the change was detected.
	Time time.Time
}

// Handler receives a debounced batch of changes. Batches never contain
// the same path twice.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits for quiet before flushing a
	// batch. Default: 200ms.
	Debounce time.Duration

	// Ignore lists base names or filepath.Match patterns that are never
	// watched or reported. Default: .git, node_modules, editor swap files.
	Ignore []string

	// BufferSize is the capacity of the pending change queue. Changes
	// arriving while it is full are dropped and counted. Default: 1024.
	BufferSize int

	// Logger receives watcher errors. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default watcher configuration.
func DefaultOptions() Options {
	return Options{
		Debounce:   200 * time.Millisecond,
		Ignore:     []string{".git", "node_modules", ".idea", ".vscode", "*.swp", "*.tmp", "*~"},
		BufferSize: 1024,
		Logger:     slog.Default(),
	}
}

// Watcher watches a directory tree and reports debounced change batches.
//
// # Description
//
// Every directory under the root that is not ignored is registered with
// fsnotify, and directories created later are registered as they appear.
// Events are queued on a buffered channel; once no event has arrived for
// the debounce window the queued changes are de-duplicated by path (the
// latest change wins) and passed to the handler.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine,
// so batches never overlap.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Int64

	mu       sync.RWMutex
	watching bool
}

// New creates a watcher for root. Call Start to begin watching.
//
// # Inputs
//
//   - root: Directory to watch. Made absolute.
//   - handler: Called with each debounced batch. May be nil.
//   - opts: Zero fields take their defaults.
//
// # Outputs
//
//   - *Watcher: Ready to start.
//   - error: ErrNotDirectory, or the fsnotify creation error.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.Ignore == nil {
		opts.Ignore = defaults.Ignore
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     abs,
		fsw:      fsw,
		handler:  handler,
		debounce: opts.Debounce,
		ignore:   opts.Ignore,
		logger:   opts.Logger.With(slog.String("root", abs)),
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string {
	return w.root
}

// Start registers the directory tree and begins watching.
//
// Two goroutines run until Stop is called or ctx is cancelled: one
// converts fsnotify events into changes, the other debounces them and
// calls the handler. A pending batch is flushed on shutdown.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return err
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Debug("watching for changes", slog.Duration("debounce", w.debounce))
	return nil
}

// Stop stops watching and waits for the final batch to be handled.
// Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
	return err
}

// Watching reports whether the watcher is active.
func (w *Watcher) Watching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Dropped returns how many changes were discarded because the queue was
// full.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root must be readable; unreadable subtrees are skipped.
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// shouldIgnore reports whether any segment of path below the root matches
// an ignore pattern.
func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, pattern := range w.ignore {
			if seg == pattern {
				return true
			}
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}

			change := Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				w.dropped.Add(1)
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							slog.String("path", event.Name),
							slog.String("error", err.Error()),
						)
					}
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(ctx, Dedupe(batch))
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// Dedupe keeps the latest change per path, in order of first appearance.
func Dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}

// configFiles are non-source files whose edits change how imports resolve.
var configFiles = map[string]bool{
	"tsconfig.json": true,
	"jsconfig.json": true,
	"package.json":  true,
	".gitignore":    true,
}

// Relevant reports whether a change to path can alter a dependency table:
// a JS/TS source, a resolution config file, or a path without an extension
// (usually a directory being created, removed or renamed).
func Relevant(path string) bool {
	base := filepath.Base(path)
	if configFiles[base] || extract.IsSourceFile(path) {
		return true
	}
	return filepath.Ext(base) == ""
}
