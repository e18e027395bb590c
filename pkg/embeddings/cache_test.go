package embeddings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateServerHash_Deterministic(t *testing.T) {
	t.Parallel()

	h1 := GenerateServerHash("github", "npx", []string{"-y", "github-mcp"}, map[string]string{"TOKEN": "x"})
	h2 := GenerateServerHash("github", "npx", []string{"-y", "github-mcp"}, map[string]string{"TOKEN": "x"})
	assert.Equal(t, h1, h2)

	h3 := GenerateServerHash("github", "npx", []string{"-y", "github-mcp"}, map[string]string{"TOKEN": "y"})
	assert.NotEqual(t, h1, h3)

	h4 := GenerateServerHash("other", "npx", []string{"-y", "github-mcp"}, map[string]string{"TOKEN": "x"})
	assert.NotEqual(t, h1, h4)
}

func TestCache_SaveAndGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := NewCache(dir)

	embeddings := map[string][]float32{
		"tool_a": {0.1, 0.2, 0.3},
		"tool_b": {-0.5, 0.5},
	}

	require.NoError(t, c.Save("abc123", embeddings))

	got, ok := c.Get("abc123")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, got["tool_a"], 1e-6)
	assert.InDeltaSlice(t, []float32{-0.5, 0.5}, got["tool_b"], 1e-6)

	data, err := os.ReadFile(filepath.Join(dir, "abc123.json"))
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, byte('{'), data[0])
	assert.Equal(t, byte('}'), data[len(data)-1])
}

func TestCache_GetMiss(t *testing.T) {
	t.Parallel()

	c := NewCache(t.TempDir())
	_, ok := c.Get("does-not-exist")
	assert.False(t, ok)
}

func TestCache_GetUnparseable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o644))

	c := NewCache(dir)
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestCache_CleanupUnused(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unused.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("keep me"), 0o644))

	c := NewCache(dir)
	require.NoError(t, c.CleanupUnused(map[string]struct{}{"active": {}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"active.json", "other.txt"}, names)
}

func TestCache_CleanupUnused_MissingDir(t *testing.T) {
	t.Parallel()

	c := NewCache(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, c.CleanupUnused(map[string]struct{}{}))
}
