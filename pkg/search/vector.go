package search

import (
	"context"
	"sort"

	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
)

// vectorScoreCutoff is the minimum cosine similarity for a record to be
// eligible; records at or below this are excluded entirely.
const vectorScoreCutoff = 0.35

// vectorQueryEmbedder is the narrow embedding surface vector search needs.
type vectorQueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// vectorSearch implements §4.4.2: embed the query, score every embedded
// record by dot product (cosine similarity, since both sides are
// L2-normalised), keep scores strictly above the cutoff, and return the
// top-limit records in descending score order.
func vectorSearch(ctx context.Context, embedder vectorQueryEmbedder, reg *registry.Registry, query string, limit int) ([]*registry.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	queryVec, err := embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		rec   *registry.Record
		score float32
	}

	var candidates []scored
	for _, rec := range reg.Snapshot() {
		if rec.Embedding == nil {
			continue
		}
		score := dotProduct(queryVec, rec.Embedding)
		if score <= vectorScoreCutoff {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*registry.Record, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out, nil
}

func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
