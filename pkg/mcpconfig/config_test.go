package mcpconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestLoad_MissingFile_ZeroUpstreams(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "MCP_CONFIG_PATH", filepath.Join(dir, "does-not-exist.json"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, cfg.Servers)
}

func TestLoad_ValidManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp-config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"mcpServers": {
			"github": {"command": "npx", "args": ["-y", "github-mcp"], "env": {"TOKEN": "x"}}
		}
	}`), 0o644))
	withEnv(t, "MCP_CONFIG_PATH", path)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Contains(t, cfg.Servers, "github")
	assert.Equal(t, "npx", cfg.Servers["github"].Command)
	assert.Equal(t, []string{"-y", "github-mcp"}, cfg.Servers["github"].Args)
	assert.Equal(t, "x", cfg.Servers["github"].Env["TOKEN"])
}

func TestLoad_InvalidJSON_Fatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp-config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	withEnv(t, "MCP_CONFIG_PATH", path)

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "MCP_CONFIG_PATH", filepath.Join(dir, "missing.json"))
	for _, k := range []string{"MCP_SEARCH_MODE", "MCP_EMBEDDING_MODEL", "MCP_EMBEDDING_SERVICE_URL", "MCP_CACHE_DIR", "MCP_SKILLS_PATH"} {
		withEnv(t, k, "")
	}

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, SearchModeFuse, cfg.SearchMode)
	assert.Equal(t, "Xenova/all-MiniLM-L6-v2", cfg.EmbeddingModel)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.EmbeddingURL)
}

func TestParseSearchMode(t *testing.T) {
	assert.Equal(t, SearchModeVector, parseSearchMode("vector"))
	assert.Equal(t, SearchModeVector, parseSearchMode("VECTOR"))
	assert.Equal(t, SearchModeFuse, parseSearchMode(""))
	assert.Equal(t, SearchModeFuse, parseSearchMode("bogus"))
}
