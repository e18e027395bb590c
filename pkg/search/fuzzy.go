package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
	"github.com/fussraider/tool-search-tools-mcp/pkg/textnorm"
)

// Field weights mirror the reference Fuse.js configuration this backend
// approximates; bleve has no literal ignoreLocation/findAllMatches knobs,
// so those are approximated by per-field MatchQuery boosts combined in a
// DisjunctionQuery rather than a phrase/proximity search.
const (
	weightName           = 0.50
	weightDescription     = 0.30
	weightSchemaKeywords  = 0.15
	weightServer          = 0.05

	fuzzyThreshold = 0.40
)

type fuzzyDoc struct {
	Server         string `json:"server"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	SchemaKeywords string `json:"schemaKeywords"`
}

// fuzzyIndexCache holds one built bleve index, rebuilt when the
// registry's updatedAt counter differs from builtAt. This mirrors the
// reference implementation's weak-map-keyed cache without requiring a
// weak reference: each Engine is bound to one registry and owns one
// fuzzyIndexCache as a plain field, so no per-registry map is needed.
type fuzzyIndexCache struct {
	mu      sync.Mutex
	builtAt uint64
	index   bleve.Index
	byKey   map[string]*registry.Record
}

func newFuzzyDocMapping() *mapping.IndexMappingImpl {
	docMapping := bleve.NewDocumentMapping()

	fieldMapping := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt("name", fieldMapping)
	docMapping.AddFieldMappingsAt("description", fieldMapping)
	docMapping.AddFieldMappingsAt("schemaKeywords", fieldMapping)
	docMapping.AddFieldMappingsAt("server", fieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// build constructs a fresh in-memory bleve index over records.
func (c *fuzzyIndexCache) build(records []*registry.Record) error {
	idx, err := bleve.NewMemOnly(newFuzzyDocMapping())
	if err != nil {
		return err
	}

	byKey := make(map[string]*registry.Record, len(records))
	batch := idx.NewBatch()
	for _, rec := range records {
		key := rec.Server + "\x00" + rec.Name
		byKey[key] = rec
		doc := fuzzyDoc{
			Server:         rec.Server,
			Name:           rec.Name,
			Description:    rec.Description,
			SchemaKeywords: rec.SchemaKeywords,
		}
		if err := batch.Index(key, doc); err != nil {
			return err
		}
	}
	if err := idx.Batch(batch); err != nil {
		return err
	}

	c.index = idx
	c.byKey = byKey
	return nil
}

// ensure rebuilds the index if the registry has mutated since the last
// build; this is the cache described in spec's §4.4.1.
func (c *fuzzyIndexCache) ensure(reg *registry.Registry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := reg.UpdatedAt()
	if c.index != nil && c.builtAt == current {
		return nil
	}
	if err := c.build(reg.Snapshot()); err != nil {
		return err
	}
	c.builtAt = current
	return nil
}

func fieldQuery(field, text string, boost float64) query.Query {
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	q.SetFuzziness(1)
	q.SetBoost(boost)
	return q
}

// runFuzzy executes text against the built index and returns matching keys
// in the index's native score order (descending).
func (c *fuzzyIndexCache) runFuzzy(text string) ([]string, map[string]float64, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, nil, nil
	}

	disjunction := bleve.NewDisjunctionQuery(
		fieldQuery("name", text, weightName),
		fieldQuery("description", text, weightDescription),
		fieldQuery("schemaKeywords", text, weightSchemaKeywords),
		fieldQuery("server", text, weightServer),
	)
	disjunction.Min = 0

	req := bleve.NewSearchRequest(disjunction)
	req.Size = 200

	result, err := c.index.Search(req)
	if err != nil {
		return nil, nil, err
	}

	keys := make([]string, 0, len(result.Hits))
	scores := make(map[string]float64, len(result.Hits))
	for _, hit := range result.Hits {
		keys = append(keys, hit.ID)
		// bleve's relevance score is higher-is-better; the reference
		// Fuse.js score is lower-is-better, so invert for the tiebreak.
		scores[hit.ID] = -hit.Score
	}
	return keys, scores, nil
}

// fuseSearch implements the mode-fuse algorithm of spec's §4.4.1: run the
// lowercased query, top up with per-token sub-queries if short on results,
// then rank by coverage score with the native fuzzy score as tiebreak.
func fuseSearch(reg *registry.Registry, cache *fuzzyIndexCache, query string, limit int) ([]*registry.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := cache.ensure(reg); err != nil {
		return nil, err
	}

	lowered := strings.ToLower(strings.TrimSpace(query))
	keys, scores, err := cache.runFuzzy(lowered)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}

	if len(keys) < limit {
		for _, tok := range textnorm.Tokenize(query, 4) {
			tokKeys, tokScores, err := cache.runFuzzy(tok)
			if err != nil {
				return nil, err
			}
			for _, k := range tokKeys {
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				keys = append(keys, k)
				scores[k] = tokScores[k]
			}
		}
	}

	type scored struct {
		rec      *registry.Record
		coverage float64
		fuzzy    float64
	}

	coverageWords := textnorm.Tokenize(query, 2)
	candidates := make([]scored, 0, len(keys))
	for _, k := range keys {
		rec, ok := cache.byKey[k]
		if !ok {
			continue
		}
		candidates = append(candidates, scored{
			rec:      rec,
			coverage: coverageScore(rec, coverageWords),
			fuzzy:    scores[k],
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if absDiff(a.coverage, b.coverage) > 0.1 {
			return a.coverage > b.coverage
		}
		return a.fuzzy < b.fuzzy
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

// coverageScore implements the +1/+0.5 substring-coverage rule against a
// tokenised query (minLen 2).
func coverageScore(rec *registry.Record, words []string) float64 {
	lowerName := strings.ToLower(rec.Name)
	var score float64
	for _, w := range words {
		if strings.Contains(rec.NormalizedText, w) {
			score++
			if strings.Contains(lowerName, w) {
				score += 0.5
			}
		}
	}
	return score
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
