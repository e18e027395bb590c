package embeddings

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
)

// serverConfig is the subset of an upstream server's connection parameters
// that determines its cache identity.
type serverConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

type hashInput struct {
	ServerName string       `json:"server_name"`
	Config     serverConfig `json:"config"`
}

// GenerateServerHash returns a deterministic hex SHA-256 digest of
// {server_name, config}, used as the cache file's base name.
func GenerateServerHash(name, command string, args []string, env map[string]string) string {
	in := hashInput{
		ServerName: name,
		Config: serverConfig{
			Command: command,
			Args:    args,
			Env:     env,
		},
	}
	// Canonical encoding: sorted map keys (encoding/json already sorts map
	// keys when marshalling) and a stable field order via the struct tags
	// above, so two equal inputs always produce the same bytes.
	data, err := json.Marshal(in)
	if err != nil {
		// Marshalling a plain struct of strings/maps cannot fail.
		panic(fmt.Sprintf("embeddings: hash input marshal: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Cache manages the on-disk, per-upstream-server embedding cache.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir. The directory is created lazily
// on first write.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

// Get returns the cached tool-name -> vector mapping for hash, or ok=false
// on a cache miss (missing file or unparseable content).
func (c *Cache) Get(hash string) (map[string][]float32, bool) {
	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		return nil, false
	}
	var out map[string][]float32
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Warnw("embeddings: cache file unparseable", "hash", hash, "error", err.Error())
		return nil, false
	}
	return out, true
}

// flushThreshold is the approximate chunk size (in bytes) at which the
// incremental cache writer flushes its buffer to disk.
const flushThreshold = 1 << 20 // 1 MiB

// Save writes embeddings to the cache file for hash. Large maps are
// streamed in ~1MiB chunks rather than marshalled as one value, but the
// resulting file is always a single valid JSON object.
func (c *Cache) Save(hash string, embeddings map[string][]float32) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("embeddings: create cache dir: %w", err)
	}

	tmpPath := c.path(hash) + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("embeddings: create cache file: %w", err)
	}

	w := bufio.NewWriterSize(f, flushThreshold)
	if werr := writeChunked(w, embeddings); werr != nil {
		f.Close()
		os.Remove(tmpPath)
		return werr
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("embeddings: flush cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("embeddings: close cache file: %w", err)
	}

	if err := os.Rename(tmpPath, c.path(hash)); err != nil {
		return fmt.Errorf("embeddings: finalize cache file: %w", err)
	}
	return nil
}

// writeChunked streams embeddings as a JSON object, one key at a time, in
// deterministic key order, so output is diffable and the writer's internal
// buffer flushes in bounded chunks rather than building the whole document
// in memory at once.
func writeChunked(w *bufio.Writer, embeddings map[string][]float32) error {
	names := make([]string, 0, len(embeddings))
	for name := range embeddings {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := w.WriteString("{"); err != nil {
		return fmt.Errorf("embeddings: write cache: %w", err)
	}
	for i, name := range names {
		if i > 0 {
			if _, err := w.WriteString(","); err != nil {
				return fmt.Errorf("embeddings: write cache: %w", err)
			}
		}
		keyBytes, err := json.Marshal(name)
		if err != nil {
			return fmt.Errorf("embeddings: encode tool name: %w", err)
		}
		if _, err := w.Write(keyBytes); err != nil {
			return fmt.Errorf("embeddings: write cache: %w", err)
		}
		if _, err := w.WriteString(":["); err != nil {
			return fmt.Errorf("embeddings: write cache: %w", err)
		}
		vec := embeddings[name]
		for j, f := range vec {
			if j > 0 {
				if _, err := w.WriteString(","); err != nil {
					return fmt.Errorf("embeddings: write cache: %w", err)
				}
			}
			if _, err := w.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32)); err != nil {
				return fmt.Errorf("embeddings: write cache: %w", err)
			}
		}
		if _, err := w.WriteString("]"); err != nil {
			return fmt.Errorf("embeddings: write cache: %w", err)
		}
	}
	_, err := w.WriteString("}")
	if err != nil {
		return fmt.Errorf("embeddings: write cache: %w", err)
	}
	return nil
}

// CleanupUnused deletes every `<hash>.json` file in the cache directory
// whose hash is not present in activeHashes. Non-JSON files are left
// untouched. A missing directory is not an error.
func (c *Cache) CleanupUnused(activeHashes map[string]struct{}) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("embeddings: read cache dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		hash := strings.TrimSuffix(name, ".json")
		if _, active := activeHashes[hash]; active {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			logger.Warnw("embeddings: failed to remove orphan cache file", "file", name, "error", err.Error())
		}
	}
	return nil
}
