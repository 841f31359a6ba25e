package index

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/store"
	"github.com/mindvault/mindvault/internal/vault"
	"github.com/mindvault/mindvault/internal/watcher"
)

type stubEmbedder struct {
	batches atomic.Int64
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.batches.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, 4)
		for j, r := range t {
			vec[j%4] += float32(r)
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int                { return 4 }
func (s *stubEmbedder) ModelName() string              { return "stub-model" }
func (s *stubEmbedder) Available(context.Context) bool { return true }
func (s *stubEmbedder) Close() error                   { return nil }

type dirtyRecorder struct {
	count atomic.Int64
}

func (d *dirtyRecorder) MarkDirty() { d.count.Add(1) }

type syncFixture struct {
	vaultDir string
	sync     *Synchronizer
	metadata *store.MetadataStore
	vectors  *store.HNSWStore
	dirty    *dirtyRecorder
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	vaultDir := t.TempDir()
	dataDir := t.TempDir()

	metadata, err := store.NewMetadataStore(filepath.Join(dataDir, "mindvault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = metadata.Close() })

	vectors := store.NewHNSWStore(4)
	dirty := &dirtyRecorder{}

	s := NewSynchronizer(
		vault.NewScanner(vaultDir, nil),
		vault.NewParser(2000, 1),
		&stubEmbedder{},
		vectors,
		metadata,
		dirty,
		"",
	)
	return &syncFixture{vaultDir: vaultDir, sync: s, metadata: metadata, vectors: vectors, dirty: dirty}
}

func (f *syncFixture) writeNote(t *testing.T, relPath, content string) {
	t.Helper()
	abs := filepath.Join(f.vaultDir, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestSyncIndexesNewDocuments(t *testing.T) {
	f := newSyncFixture(t)
	f.writeNote(t, "projects/alpha.md", "# Alpha\n\nKickoff notes for the alpha project.\n")
	f.writeNote(t, "journal/today.md", "# Today\n\nWrote the synchronizer.\n")

	stats, err := f.sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Zero(t, stats.Updated)
	assert.Zero(t, stats.Deleted)

	docs, err := f.metadata.DocumentCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, docs)
	assert.Greater(t, f.vectors.Count(), 0)
	assert.Greater(t, f.dirty.count.Load(), int64(0))
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	f.writeNote(t, "note.md", "# Note\n\nStable content.\n")

	_, err := f.sync.Sync(context.Background())
	require.NoError(t, err)
	before := f.dirty.count.Load()

	stats, err := f.sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Added)
	assert.Zero(t, stats.Updated)
	assert.Zero(t, stats.Deleted)
	assert.Equal(t, 1, stats.Unchanged)
	// An all-unchanged pass must not invalidate the lexical index.
	assert.Equal(t, before, f.dirty.count.Load())
}

func TestSyncDetectsContentChange(t *testing.T) {
	f := newSyncFixture(t)
	f.writeNote(t, "note.md", "# Note\n\nFirst draft.\n")
	_, err := f.sync.Sync(context.Background())
	require.NoError(t, err)

	f.writeNote(t, "note.md", "# Note\n\nSecond draft with more detail.\n")
	stats, err := f.sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Zero(t, stats.Added)

	chunks, err := f.metadata.GetChunksByDocument(context.Background(), note.DocumentID("note.md"))
	require.NoError(t, err)
	found := false
	for _, c := range chunks {
		if c.Kind == note.KindParagraph {
			assert.Contains(t, c.Content, "Second draft")
			found = true
		}
	}
	assert.True(t, found)
}

func TestSyncRemovesDeletedDocuments(t *testing.T) {
	f := newSyncFixture(t)
	f.writeNote(t, "keep.md", "# Keep\n\nStays around.\n")
	f.writeNote(t, "gone.md", "# Gone\n\nAbout to vanish.\n")
	_, err := f.sync.Sync(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.vaultDir, "gone.md")))
	stats, err := f.sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	docs, err := f.metadata.DocumentCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, docs)

	chunks, err := f.metadata.GetChunksByDocument(context.Background(), note.DocumentID("gone.md"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSyncExtractsTasksAndReminders(t *testing.T) {
	f := newSyncFixture(t)
	f.writeNote(t, "todo.md", "# Todo\n\n- [ ] file taxes due:2026-04-15 !!\n- [x] book dentist\n")

	_, err := f.sync.Sync(context.Background())
	require.NoError(t, err)

	tasks, err := f.metadata.ListTasks(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "file taxes", tasks[0].Content)
	assert.Equal(t, 2, tasks[0].Priority)
	require.NotNil(t, tasks[0].DueDate)
}

func TestSyncCancelledContext(t *testing.T) {
	f := newSyncFixture(t)
	f.writeNote(t, "note.md", "# Note\n\nContent.\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.sync.Sync(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRebuildReindexesEverything(t *testing.T) {
	f := newSyncFixture(t)
	f.writeNote(t, "a.md", "# A\n\nAlpha content.\n")
	f.writeNote(t, "b.md", "# B\n\nBeta content.\n")
	_, err := f.sync.Sync(context.Background())
	require.NoError(t, err)

	stats, err := f.sync.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)

	docs, err := f.metadata.DocumentCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, docs)
}

func TestProcessEventsCreateAndDelete(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.writeNote(t, "new.md", "# New\n\nArrived via watcher.\n")
	f.sync.ProcessEvents(ctx, f.vaultDir, []watcher.FileEvent{
		{Path: "new.md", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})

	docs, err := f.metadata.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)

	f.sync.ProcessEvents(ctx, f.vaultDir, []watcher.FileEvent{
		{Path: "new.md", Operation: watcher.OpDelete, Timestamp: time.Now()},
	})
	docs, err = f.metadata.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, docs)
}

func TestProcessEventsToleratesBrokenFiles(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.writeNote(t, "good.md", "# Good\n\nFine note.\n")

	// One event points at a file that does not exist; the other succeeds.
	f.sync.ProcessEvents(ctx, f.vaultDir, []watcher.FileEvent{
		{Path: "missing.md", Operation: watcher.OpModify, Timestamp: time.Now()},
		{Path: "good.md", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})

	docs, err := f.metadata.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
}

func TestDataLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindvault.lock")

	first := NewDataLock(path)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	second := NewDataLock(path)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired, "lock held elsewhere")

	require.NoError(t, first.Unlock())
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())

	// Unlock when not held is a no-op.
	assert.NoError(t, first.Unlock())
}
