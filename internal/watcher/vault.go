package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// VaultWatcher watches a vault with fsnotify, forwarding markdown events
// through a debouncer. New subdirectories are added to the watch as they
// appear.
type VaultWatcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	rootPath  string
	opts      Options

	mu      sync.Mutex
	stopped bool
}

var _ Watcher = (*VaultWatcher)(nil)

// NewVaultWatcher creates a watcher with the given options.
func NewVaultWatcher(opts Options) (*VaultWatcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &VaultWatcher{
		fsw:       fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}, nil
}

// Start watches path recursively and blocks until ctx is cancelled or Stop
// is called.
func (w *VaultWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve vault path: %w", err)
	}
	w.rootPath = absPath

	if err := w.addRecursive(absPath); err != nil {
		return fmt.Errorf("watch vault directories: %w", err)
	}

	go w.forwardBatches(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Stop stops the watcher and closes all channels.
func (w *VaultWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	err := w.fsw.Close()
	w.debouncer.Stop()
	close(w.events)
	close(w.errors)
	return err
}

// Events returns debounced event batches.
func (w *VaultWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *VaultWatcher) Errors() <-chan error {
	return w.errors
}

func (w *VaultWatcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.mu.Lock()
			if !w.stopped {
				select {
				case w.events <- batch:
				default:
					// The consumer is not keeping up; the files stay on disk
					// and the next full sync reconciles them.
					slog.Warn("event buffer full, dropping batch",
						"events", len(batch))
				}
			}
			w.mu.Unlock()
		}
	}
}

func (w *VaultWatcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.ignored(rel) {
		return
	}

	if isDir {
		// Watch directories created after startup.
		if event.Op&fsnotify.Create != 0 {
			_ = w.addRecursive(event.Name)
		}
		return
	}
	if !strings.HasSuffix(strings.ToLower(rel), ".md") {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename looks like remove-at-old-path; the new path arrives as
		// its own create event.
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

func (w *VaultWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.rootPath, path)
		if relErr == nil {
			rel = filepath.ToSlash(rel)
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || w.ignored(rel)) {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}

func (w *VaultWatcher) ignored(rel string) bool {
	base := filepath.Base(rel)
	for _, pat := range w.opts.IgnorePatterns {
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
		if dir, ok := strings.CutSuffix(pat, "/*"); ok {
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
		}
	}
	return false
}

func (w *VaultWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
