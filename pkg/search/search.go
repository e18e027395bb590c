// Package search implements the aggregator's mode-switched retrieval over
// the tool registry: a bleve-backed lexical ("fuse") mode and a
// dot-product vector mode, chosen by mcpconfig.SearchMode.
package search

import (
	"context"

	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
)

// DefaultLimit is applied by callers that omit an explicit limit.
const DefaultLimit = 5

// Engine ties one registry to the chosen search mode and owns the fuzzy
// index cache so repeated queries don't rebuild it.
type Engine struct {
	reg      *registry.Registry
	embedder vectorQueryEmbedder
	vector   bool

	fuzzy fuzzyIndexCache
}

// NewEngine constructs a search engine. embedder may be nil when vector
// mode is disabled.
func NewEngine(reg *registry.Registry, embedder vectorQueryEmbedder, vectorMode bool) *Engine {
	return &Engine{reg: reg, embedder: embedder, vector: vectorMode}
}

// SearchTools runs searchTools(registry, query, limit) per §4.4: an empty
// registry, an all-zero-score pool, or limit<=0 returns an empty list.
func (e *Engine) SearchTools(ctx context.Context, query string, limit int) ([]*registry.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	if e.vector {
		return vectorSearch(ctx, e.embedder, e.reg, query, limit)
	}
	return fuseSearch(e.reg, &e.fuzzy, query, limit)
}
