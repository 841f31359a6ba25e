package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/mindvault/internal/config"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootHasCommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"init", "sync", "search", "ask", "capture", "tasks",
		"facts", "briefing", "watch", "serve", "stats", "version"}
	have := make(map[string]bool)
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing command %s", name)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mindvault")
}

func TestInitWritesConfig(t *testing.T) {
	vaultDir := t.TempDir()

	out, err := runCommand(t, "init", "--vault", vaultDir)
	require.NoError(t, err)
	assert.Contains(t, out, config.DefaultConfigName)

	path := filepath.Join(vaultDir, config.DefaultConfigName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vector_weight")

	// A second init without --force refuses to clobber.
	_, err = runCommand(t, "init", "--vault", vaultDir)
	require.Error(t, err)

	_, err = runCommand(t, "init", "--vault", vaultDir, "--force")
	require.NoError(t, err)
}

func TestInitRejectsMissingVault(t *testing.T) {
	_, err := runCommand(t, "init", "--vault", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
