// Package registry holds the aggregator's in-memory tool catalogue: one
// record per upstream tool or ingested skill, a secondary (server, name)
// index, and the version counter the search engine uses to invalidate its
// fuzzy index cache.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/fussraider/tool-search-tools-mcp/pkg/embeddings"
	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
	"github.com/fussraider/tool-search-tools-mcp/pkg/textnorm"
	"github.com/fussraider/tool-search-tools-mcp/pkg/upstream"
)

// InternalServer is the synthetic server name skill records are filed
// under.
const InternalServer = "internal"

// embeddingConcurrency bounds how many embedding-generation calls run at
// once while ingesting one server's tool list.
const embeddingConcurrency = 10

// Record is the registry's unit: a single upstream tool, or a skill
// synthesised from a YAML definition.
type Record struct {
	Server         string
	Name           string
	Description    string
	Schema         map[string]any
	SchemaKeywords string
	NormalizedText string
	Embedding      []float32
	IsSkill        bool
	Steps          []SkillStep

	client upstreamClient
}

// SkillStep is one step of a skill's execution plan.
type SkillStep struct {
	Tool        string
	Server      string
	Args        map[string]any
	ResultVar   string
	Description string
}

// Skill is a loaded skill definition, as produced by pkg/skills.
type Skill struct {
	Name        string
	Description string
	Parameters  map[string]any
	Steps       []SkillStep
}

// upstreamClient is the narrow surface the registry needs from a connected
// upstream server. *upstream.Client satisfies it; tests supply fakes.
type upstreamClient interface {
	ListTools(ctx context.Context) ([]upstream.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (*upstream.CallResult, error)
	Close() error
}

// embeddingEngine is the narrow surface the registry needs from the
// embedding service.
type embeddingEngine interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// cacheStore is the narrow surface the registry needs from the on-disk
// embedding cache.
type cacheStore interface {
	Get(hash string) (map[string][]float32, bool)
	Save(hash string, embeddings map[string][]float32) error
}

// Registry owns the tool catalogue. The zero value is not usable; use New.
type Registry struct {
	mu      sync.RWMutex
	records []*Record
	index   map[string]*Record // "server\x00name" -> record

	updatedAt atomic.Uint64

	embedder embeddingEngine
	cache    cacheStore
	vectorOn bool
}

// New constructs an empty registry. embedder/cache may be nil when
// vectorMode is false.
func New(embedder embeddingEngine, cache cacheStore, vectorMode bool) *Registry {
	return &Registry{
		index:    map[string]*Record{},
		embedder: embedder,
		cache:    cache,
		vectorOn: vectorMode,
	}
}

func indexKey(server, name string) string {
	return server + "\x00" + name
}

// UpdatedAt returns the current version counter.
func (r *Registry) UpdatedAt() uint64 {
	return r.updatedAt.Load()
}

// Snapshot returns the current ordered tool sequence. The slice is a copy
// of the header; callers must not mutate the returned records.
func (r *Registry) Snapshot() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, len(r.records))
	copy(out, r.records)
	return out
}

// GetTool performs the primary-key lookup.
func (r *Registry) GetTool(server, name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.index[indexKey(server, name)]
	return rec, ok
}

// FindByName scans for every record whose Name matches, regardless of
// server. Used by the skills executor when a step omits `server`.
func (r *Registry) FindByName(name string) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.records {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

// CallUpstream invokes name on the owning upstream client of rec. rec must
// be a non-skill record.
func (r *Registry) CallUpstream(ctx context.Context, rec *Record, arguments map[string]any) (*upstream.CallResult, error) {
	if rec.client == nil {
		return nil, fmt.Errorf("registry: tool %s/%s has no live upstream handle", rec.Server, rec.Name)
	}
	return rec.client.CallTool(ctx, rec.Name, arguments)
}

// ConnectServer spawns the named upstream, enumerates its tools, hydrates
// or generates embeddings, and inserts the resulting records. A spawn or
// enumeration failure is returned to the caller; records from other,
// already-successful servers are unaffected.
func (r *Registry) ConnectServer(ctx context.Context, name, command string, args []string, env map[string]string) error {
	c, err := upstream.Connect(ctx, name, command, args, env)
	if err != nil {
		return fmt.Errorf("registry: connect %s: %w", name, err)
	}

	var serverHash string
	if r.vectorOn {
		serverHash = embeddings.GenerateServerHash(name, command, args, env)
	}

	if err := r.RegisterToolsFromClient(ctx, name, c, serverHash); err != nil {
		_ = c.Close()
		return fmt.Errorf("registry: enumerate %s: %w", name, err)
	}
	return nil
}

// RegisterToolsFromClient enumerates c's tools and inserts one record per
// tool, attaching embeddings in vector mode.
func (r *Registry) RegisterToolsFromClient(ctx context.Context, serverName string, c upstreamClient, serverHash string) error {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return err
	}

	var cached map[string][]float32
	if r.vectorOn && serverHash != "" && r.cache != nil {
		cached, _ = r.cache.Get(serverHash)
	}

	newRecords := make([]*Record, len(tools))
	embeddingTargets := make([]int, 0, len(tools))
	for i, t := range tools {
		rec := &Record{
			Server:      serverName,
			Name:        t.Name,
			Description: t.Description,
			Schema:      schemaToMap(t.InputSchema),
			client:      c,
		}
		rec.SchemaKeywords = strings.Join(schemaKeywords(t.Name, t.Description, rec.Schema), " ")
		rec.NormalizedText = textnorm.Normalize(strings.Join([]string{t.Name, t.Description, rec.SchemaKeywords}, " "))
		newRecords[i] = rec

		if !r.vectorOn {
			continue
		}
		if vec, ok := cached[t.Name]; ok {
			rec.Embedding = vec
			continue
		}
		embeddingTargets = append(embeddingTargets, i)
	}

	generated := false
	if r.vectorOn && len(embeddingTargets) > 0 && r.embedder != nil {
		if err := r.generateMissingEmbeddings(ctx, newRecords, embeddingTargets); err != nil {
			logger.Warnw("registry: embedding generation failed for some tools", "server", serverName, "error", err.Error())
		} else {
			generated = true
		}
	}

	r.mu.Lock()
	for _, rec := range newRecords {
		key := indexKey(rec.Server, rec.Name)
		r.index[key] = rec
		r.records = append(r.records, rec)
	}
	r.mu.Unlock()
	r.bump()

	if generated && serverHash != "" && r.cache != nil {
		merged := map[string][]float32{}
		for k, v := range cached {
			merged[k] = v
		}
		for _, rec := range newRecords {
			if rec.Embedding != nil {
				merged[rec.Name] = rec.Embedding
			}
		}
		if err := r.cache.Save(serverHash, merged); err != nil {
			logger.Warnw("registry: failed to persist embedding cache", "server", serverName, "error", err.Error())
		}
	}

	return nil
}

// generateMissingEmbeddings fills in embeddings for records[i] for each
// i in targets, one tool per call, with at most embeddingConcurrency calls
// in flight.
func (r *Registry) generateMissingEmbeddings(ctx context.Context, records []*Record, targets []int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embeddingConcurrency)

	for _, idx := range targets {
		idx := idx
		g.Go(func() error {
			rec := records[idx]
			vecs, err := r.embedder.GenerateEmbeddings(gctx, []string{rec.NormalizedText})
			if err != nil {
				logger.Warnw("registry: embedding generation failed", "tool", rec.Name, "error", err.Error())
				return nil // per-tool failure is non-fatal; tool stays unembedded
			}
			if len(vecs) == 1 {
				rec.Embedding = vecs[0]
			}
			return nil
		})
	}
	return g.Wait()
}

// RegisterSkill ingests a loaded skill as a tool record under
// InternalServer. Embedding generation failure is non-fatal.
func (r *Registry) RegisterSkill(ctx context.Context, s Skill) {
	schema := map[string]any{
		"type":       "object",
		"properties": s.Parameters,
	}
	paramNames := make([]string, 0, len(s.Parameters))
	for param := range s.Parameters {
		paramNames = append(paramNames, param)
	}
	sort.Strings(paramNames)

	rec := &Record{
		Server:      InternalServer,
		Name:        s.Name,
		Description: s.Description,
		Schema:      schema,
		IsSkill:     true,
		Steps:       s.Steps,
	}
	keywords := textnorm.ExtractKeywords(s.Name, s.Description)
	keywords = append(keywords, paramNames...)
	rec.SchemaKeywords = strings.Join(keywords, " ")
	rec.NormalizedText = textnorm.Normalize(strings.Join([]string{s.Name, s.Description, rec.SchemaKeywords}, " "))

	if r.vectorOn && r.embedder != nil {
		vecs, err := r.embedder.GenerateEmbeddings(ctx, []string{rec.NormalizedText})
		if err != nil {
			logger.Warnw("registry: skill embedding generation failed", "skill", s.Name, "error", err.Error())
		} else if len(vecs) == 1 {
			rec.Embedding = vecs[0]
		}
	}

	r.mu.Lock()
	r.index[indexKey(rec.Server, rec.Name)] = rec
	r.records = append(r.records, rec)
	r.mu.Unlock()
	r.bump()
}

func (r *Registry) bump() {
	r.updatedAt.Add(1)
}

// ConnectAll connects every configured server concurrently. A per-server
// failure is logged and does not cancel the others or abort the call.
func ConnectAll(ctx context.Context, r *Registry, servers map[string]ServerSpec) {
	var wg sync.WaitGroup
	for name, spec := range servers {
		wg.Add(1)
		go func(name string, spec ServerSpec) {
			defer wg.Done()
			if err := r.ConnectServer(ctx, name, spec.Command, spec.Args, spec.Env); err != nil {
				logger.Errorw("registry: upstream connect failed", "server", name, "error", err.Error())
			}
		}(name, spec)
	}
	wg.Wait()
}

// ServerSpec is the minimal connection description ConnectAll needs; it
// mirrors mcpconfig.ServerConfig without importing that package here.
type ServerSpec struct {
	Command string
	Args    []string
	Env     map[string]string
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

// schemaKeywords augments textnorm's name/description keywords with
// property names and property-description words drawn from the tool's
// JSON schema.
func schemaKeywords(name, description string, schema map[string]any) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(word string) {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			return
		}
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}

	for _, kw := range textnorm.ExtractKeywords(name, description) {
		add(kw)
	}

	props, _ := schema["properties"].(map[string]any)
	for propName, raw := range props {
		add(propName)
		propSchema, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		propDesc, _ := propSchema["description"].(string)
		for _, tok := range textnorm.Tokenize(propDesc, 4) {
			add(tok)
		}
	}
	return out
}
