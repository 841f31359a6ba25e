// Package index keeps the vector store, metadata store, and lexical index
// in step with the vault on disk: full incremental syncs, event-driven
// updates from the watcher, and the cross-process data lock.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mindvault/mindvault/internal/embed"
	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/store"
	"github.com/mindvault/mindvault/internal/vault"
)

// LexicalInvalidator is the staleness signal to the lexical index.
// Satisfied by search.LexicalIndex and search.Retriever.
type LexicalInvalidator interface {
	MarkDirty()
}

// SyncStats summarizes one sync pass.
type SyncStats struct {
	Added     int
	Updated   int
	Deleted   int
	Unchanged int
	Duration  time.Duration
}

// Changed reports whether the pass mutated anything.
func (s SyncStats) Changed() bool {
	return s.Added+s.Updated+s.Deleted > 0
}

// Synchronizer reconciles the stores against the vault. Document identity
// is the hash of the vault-relative path, so moves index as delete plus
// add; change detection compares content checksums against the manifest.
type Synchronizer struct {
	scanner    *vault.Scanner
	parser     *vault.Parser
	embedder   embed.Embedder
	vectors    store.VectorStore
	metadata   *store.MetadataStore
	lexical    LexicalInvalidator
	vectorPath string

	mu sync.Mutex
}

// NewSynchronizer wires a synchronizer. vectorPath is where the vector
// graph is persisted after a mutating pass; empty disables persistence.
func NewSynchronizer(scanner *vault.Scanner, parser *vault.Parser, embedder embed.Embedder,
	vectors store.VectorStore, metadata *store.MetadataStore, lexical LexicalInvalidator,
	vectorPath string) *Synchronizer {
	return &Synchronizer{
		scanner:    scanner,
		parser:     parser,
		embedder:   embedder,
		vectors:    vectors,
		metadata:   metadata,
		lexical:    lexical,
		vectorPath: vectorPath,
	}
}

// Sync runs one incremental pass: scan the vault, diff against the
// manifest, and index additions, re-index content changes, and remove
// deletions. A second pass over an unchanged vault reports all zeros.
//
// The lexical index is marked dirty before the first mutation, not after
// the last, so a cancelled pass leaves it flagged for rebuild rather than
// silently stale.
func (s *Synchronizer) Sync(ctx context.Context) (SyncStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var stats SyncStats

	files, err := s.scanner.ScanAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("scan vault: %w", err)
	}

	current := make(map[string]vault.ScanResult, len(files))
	for _, f := range files {
		if f.Err != nil {
			slog.Warn("skipping unreadable file", "path", f.RelPath, "error", f.Err)
			continue
		}
		current[note.DocumentID(f.RelPath)] = f
	}

	manifest, err := s.metadata.GetAllDocumentChecksums(ctx)
	if err != nil {
		return stats, fmt.Errorf("load manifest: %w", err)
	}

	dirtied := false
	markDirty := func() {
		if !dirtied {
			s.lexical.MarkDirty()
			dirtied = true
		}
	}

	for docID, f := range current {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		checksum, known := manifest[docID]

		doc, err := s.parser.Parse(f.AbsPath, f.RelPath)
		if err != nil {
			slog.Warn("skipping unparseable document", "path", f.RelPath, "error", err)
			continue
		}

		switch {
		case !known:
			markDirty()
			if err := s.indexDocument(ctx, doc, false); err != nil {
				return stats, fmt.Errorf("index %s: %w", f.RelPath, err)
			}
			stats.Added++
		case doc.Checksum != checksum:
			markDirty()
			if err := s.indexDocument(ctx, doc, true); err != nil {
				return stats, fmt.Errorf("reindex %s: %w", f.RelPath, err)
			}
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}

	for docID := range manifest {
		if _, exists := current[docID]; exists {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		markDirty()
		if err := s.removeDocument(ctx, docID); err != nil {
			return stats, fmt.Errorf("remove %s: %w", docID, err)
		}
		stats.Deleted++
	}

	stats.Duration = time.Since(start)
	if stats.Changed() {
		s.persistVectors()
		slog.Info("vault synced",
			"added", stats.Added,
			"updated", stats.Updated,
			"deleted", stats.Deleted,
			"unchanged", stats.Unchanged,
			"duration", stats.Duration)
	}
	return stats, nil
}

// Rebuild discards the stores and indexes the vault from scratch.
func (s *Synchronizer) Rebuild(ctx context.Context) (SyncStats, error) {
	s.mu.Lock()
	s.lexical.MarkDirty()

	manifest, err := s.metadata.GetAllDocumentChecksums(ctx)
	if err != nil {
		s.mu.Unlock()
		return SyncStats{}, fmt.Errorf("load manifest: %w", err)
	}
	if err := s.vectors.Clear(ctx); err != nil {
		s.mu.Unlock()
		return SyncStats{}, fmt.Errorf("clear vectors: %w", err)
	}
	for docID := range manifest {
		if err := s.metadata.DeleteDocument(ctx, docID); err != nil {
			s.mu.Unlock()
			return SyncStats{}, fmt.Errorf("clear document %s: %w", docID, err)
		}
	}
	s.mu.Unlock()

	return s.Sync(ctx)
}

// indexDocument embeds and stores one parsed document. Replacement deletes
// the document's vector entries first: chunk counts shrink as well as
// grow, and stale trailing chunks must not survive a re-index.
func (s *Synchronizer) indexDocument(ctx context.Context, doc *note.Document, replace bool) error {
	chunks := s.parser.Chunk(doc)

	if replace {
		if err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete stale vectors: %w", err)
		}
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if err := s.vectors.Upsert(ctx, chunks, vectors); err != nil {
			return fmt.Errorf("upsert vectors: %w", err)
		}
	}

	if err := s.metadata.UpsertDocument(ctx, doc, chunks); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	if err := s.metadata.ReplaceTasks(ctx, doc.ID, vault.ExtractTasks(doc.ID, doc.Content)); err != nil {
		return fmt.Errorf("store tasks: %w", err)
	}
	if err := s.metadata.ReplaceReminders(ctx, doc.ID, vault.ExtractReminders(doc.ID, doc.Content)); err != nil {
		return fmt.Errorf("store reminders: %w", err)
	}
	return nil
}

func (s *Synchronizer) removeDocument(ctx context.Context, docID string) error {
	if err := s.vectors.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.metadata.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	return nil
}

func (s *Synchronizer) persistVectors() {
	if s.vectorPath == "" {
		return
	}
	if err := s.vectors.Save(s.vectorPath); err != nil {
		slog.Warn("failed to persist vector index", "path", s.vectorPath, "error", err)
	}
}
