// Package mcpconfig loads the aggregator's startup configuration: the
// upstream server manifest (mcp-config.json), the skills file location, and
// the small set of environment variables that govern search mode and the
// embedding pipeline. All of it is read once at startup into a single
// struct, rather than having individual packages read the environment
// directly, so the wiring is visible in one place and easy to override in
// tests.
package mcpconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
)

// SearchMode selects the tool-search backend.
type SearchMode string

const (
	SearchModeFuse   SearchMode = "fuse"
	SearchModeVector SearchMode = "vector"
)

// ServerConfig describes one upstream MCP server entry in mcp-config.json.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// manifest mirrors the on-disk mcp-config.json shape exactly.
type manifest struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// Config is the aggregator's fully resolved startup configuration.
type Config struct {
	Servers map[string]ServerConfig

	SkillsPath string

	SearchMode      SearchMode
	EmbeddingModel  string
	EmbeddingURL    string
	CacheDir        string
}

// Load resolves the aggregator configuration: mcp-config.json is read from
// MCP_CONFIG_PATH (or installRoot/mcp-config.json if unset), and the remaining fields
// come straight from the environment. A missing config file yields zero
// upstream servers and a warning, not an error; invalid JSON is returned as
// an error so the caller can abort startup.
func Load(installRoot string) (*Config, error) {
	cfg := &Config{
		Servers:        map[string]ServerConfig{},
		SkillsPath:     envOr("MCP_SKILLS_PATH", filepath.Join(installRoot, "skills.yaml")),
		SearchMode:     parseSearchMode(os.Getenv("MCP_SEARCH_MODE")),
		EmbeddingModel: envOr("MCP_EMBEDDING_MODEL", "Xenova/all-MiniLM-L6-v2"),
		EmbeddingURL:   envOr("MCP_EMBEDDING_SERVICE_URL", "http://127.0.0.1:8080"),
		CacheDir:       envOr("MCP_CACHE_DIR", filepath.Join(installRoot, ".cache", "embeddings")),
	}

	configPath := envOr("MCP_CONFIG_PATH", filepath.Join(installRoot, "mcp-config.json"))

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnw("mcpconfig: no server manifest found, starting with zero upstreams", "path", configPath)
			return cfg, nil
		}
		return nil, fmt.Errorf("mcpconfig: read %s: %w", configPath, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("mcpconfig: parse %s: %w", configPath, err)
	}
	cfg.Servers = m.MCPServers
	return cfg, nil
}

func parseSearchMode(v string) SearchMode {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "vector":
		return SearchModeVector
	default:
		return SearchModeFuse
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
