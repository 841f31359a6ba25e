package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeVault(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestScanFindsMarkdownOnly(t *testing.T) {
	root := makeVault(t, map[string]string{
		"inbox.md":          "# Inbox",
		"projects/plan.md":  "# Plan",
		"projects/data.csv": "a,b",
		"image.png":         "binary",
	})

	s := NewScanner(root, nil)
	results, err := s.ScanAll(context.Background())
	require.NoError(t, err)

	var paths []string
	for _, r := range results {
		paths = append(paths, r.RelPath)
	}
	assert.ElementsMatch(t, []string{"inbox.md", "projects/plan.md"}, paths)
}

func TestScanSkipsHiddenAndIgnored(t *testing.T) {
	root := makeVault(t, map[string]string{
		"keep.md":                 "x",
		".obsidian/workspace.md":  "x",
		".trash/old.md":           "x",
		"drawings/map.excalidraw.md": "x",
	})

	s := NewScanner(root, []string{".obsidian/*", ".trash/*", "*.excalidraw.md"})
	results, err := s.ScanAll(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "keep.md", results[0].RelPath)
}

func TestScanMissingRoot(t *testing.T) {
	s := NewScanner(filepath.Join(t.TempDir(), "nope"), nil)
	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestScanCancellation(t *testing.T) {
	root := makeVault(t, map[string]string{"a.md": "x", "b.md": "x", "c.md": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(root, nil)
	ch, err := s.Scan(ctx)
	require.NoError(t, err)

	var count int
	for range ch {
		count++
	}
	assert.LessOrEqual(t, count, 1)
}
