package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/watcher"
)

// ProcessEvents applies a debounced batch of file events to the stores.
// Event handling is per-file best effort: one broken note must not stall
// updates for the rest of the batch.
func (s *Synchronizer) ProcessEvents(ctx context.Context, vaultRoot string, events []watcher.FileEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(events) == 0 {
		return
	}
	s.lexical.MarkDirty()

	var processed int
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := s.handleEvent(ctx, vaultRoot, event); err != nil {
			slog.Warn("failed to process file event",
				"path", event.Path,
				"operation", event.Operation.String(),
				"error", err)
			continue
		}
		processed++
	}
	if processed > 0 {
		s.persistVectors()
	}
}

func (s *Synchronizer) handleEvent(ctx context.Context, vaultRoot string, event watcher.FileEvent) error {
	docID := note.DocumentID(event.Path)

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		absPath := filepath.Join(vaultRoot, filepath.FromSlash(event.Path))
		doc, err := s.parser.Parse(absPath, event.Path)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		return s.indexDocument(ctx, doc, true)
	case watcher.OpDelete:
		return s.removeDocument(ctx, docID)
	default:
		return fmt.Errorf("unknown operation %d", event.Operation)
	}
}

// Watch consumes watcher batches until ctx is cancelled. The watcher's
// Start is expected to be running in its own goroutine already.
func (s *Synchronizer) Watch(ctx context.Context, vaultRoot string, w watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			slog.Debug("processing watch batch", "events", len(batch))
			s.ProcessEvents(ctx, vaultRoot, batch)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			if err != nil {
				slog.Warn("watcher error", "error", err)
			}
		}
	}
}
