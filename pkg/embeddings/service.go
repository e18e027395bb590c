package embeddings

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
)

// Config controls how the embedding service reaches the external inference
// runtime and where it keeps its on-disk cache.
type Config struct {
	ServiceURL string
	Model      string
	Dimension  int
	Timeout    time.Duration
	CacheDir   string
}

// ConfigFromEnv reads MCP_EMBEDDING_SERVICE_URL, MCP_EMBEDDING_MODEL, and
// MCP_CACHE_DIR, applying the defaults spec.md §6 specifies.
func ConfigFromEnv(installRoot string) Config {
	url := os.Getenv("MCP_EMBEDDING_SERVICE_URL")
	if url == "" {
		url = "http://127.0.0.1:8080"
	}
	model := os.Getenv("MCP_EMBEDDING_MODEL")
	if model == "" {
		model = "Xenova/all-MiniLM-L6-v2"
	}
	cacheDir := os.Getenv("MCP_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = installRoot + "/.cache/embeddings"
	}
	return Config{
		ServiceURL: url,
		Model:      model,
		Dimension:  384,
		Timeout:    30 * time.Second,
		CacheDir:   cacheDir,
	}
}

// Service transforms text into L2-normalised vectors, lazily and
// coalesced across concurrent first callers, and manages the on-disk
// per-server cache.
type Service struct {
	cfg   Config
	cache *Cache

	group  singleflight.Group
	client Client // set once initialization succeeds
}

// NewService constructs a Service. The underlying client is not created
// until the first call that needs it (GenerateEmbedding/GenerateEmbeddings).
func NewService(cfg Config) *Service {
	return &Service{
		cfg:   cfg,
		cache: NewCache(cfg.CacheDir),
	}
}

// Cache exposes the service's on-disk cache for the registry's hydration
// and GC passes.
func (s *Service) Cache() *Cache { return s.cache }

// ensureClient lazily constructs the embedding client. Concurrent first
// callers share one initialisation via singleflight; a failed attempt does
// not poison later calls.
func (s *Service) ensureClient(_ context.Context) (Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	v, err, _ := s.group.Do("init", func() (any, error) {
		if s.client != nil {
			return s.client, nil
		}
		logger.Infow("embeddings: initializing client", "url", s.cfg.ServiceURL, "model", s.cfg.Model)
		c := NewTEIClient(s.cfg.ServiceURL, s.cfg.Model, s.cfg.Dimension, s.cfg.Timeout)
		s.client = c
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Client), nil
}

// GenerateEmbedding produces an L2-normalised vector for text.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("embeddings: client unavailable: %w", err)
	}
	vec, err := client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embeddings: generate: %w", err)
	}
	return l2Normalize(vec), nil
}

// GenerateEmbeddings produces L2-normalised vectors for a batch of texts in
// one round trip. The registry's bounded-concurrency ingestion path calls
// it with one text per call, so ingestion makes one HTTP call per tool.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("embeddings: client unavailable: %w", err)
	}
	vecs, err := client.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embeddings: generate batch: %w", err)
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = l2Normalize(v)
	}
	return out, nil
}

// l2Normalize scales v so its Euclidean norm is 1; the zero vector is
// returned unchanged (cosine similarity against it is defined as 0 by the
// search engine, never by this function).
func l2Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, f := range v {
		sumSquares += float64(f) * float64(f)
	}
	if sumSquares == 0 {
		return v
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

// CalculateMemoryUsage estimates the in-memory footprint of an embedding
// map: 2 bytes per key rune plus 8 bytes per vector entry (float64
// equivalent), matching spec.md §8's worked example.
func CalculateMemoryUsage(embeddings map[string][]float32) int {
	total := 0
	for name, vec := range embeddings {
		total += 2 * len([]rune(name))
		total += 8 * len(vec)
	}
	return total
}
