package facade

import (
	"context"
	"fmt"
	"os"

	"github.com/fussraider/tool-search-tools-mcp/pkg/embeddings"
	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
	"github.com/fussraider/tool-search-tools-mcp/pkg/mcpconfig"
	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
	"github.com/fussraider/tool-search-tools-mcp/pkg/search"
	"github.com/fussraider/tool-search-tools-mcp/pkg/skills"
)

// Bootstrap performs the startup sequence described in §4.8: load config,
// connect every upstream server concurrently (a per-server failure is
// logged, not fatal), GC orphan cache files in vector mode, load the
// skills file (absent is fine, malformed is fatal), register skills as
// internal tools, and return a ready-to-serve Facade.
func Bootstrap(ctx context.Context, installRoot string) (*Facade, error) {
	cfg, err := mcpconfig.Load(installRoot)
	if err != nil {
		return nil, fmt.Errorf("facade: load config: %w", err)
	}

	vectorMode := cfg.SearchMode == mcpconfig.SearchModeVector

	var embedSvc *embeddings.Service
	if vectorMode {
		embedSvc = embeddings.NewService(embeddings.Config{
			ServiceURL: cfg.EmbeddingURL,
			Model:      cfg.EmbeddingModel,
			Dimension:  384,
			CacheDir:   cfg.CacheDir,
		})
	}

	var cache *embeddings.Cache
	if embedSvc != nil {
		cache = embedSvc.Cache()
	}
	reg := registry.New(embedSvc, cache, vectorMode)

	specs := make(map[string]registry.ServerSpec, len(cfg.Servers))
	for name, s := range cfg.Servers {
		specs[name] = registry.ServerSpec{Command: s.Command, Args: s.Args, Env: s.Env}
	}
	registry.ConnectAll(ctx, reg, specs)

	if vectorMode && embedSvc != nil {
		active := make(map[string]struct{}, len(cfg.Servers))
		for name, s := range cfg.Servers {
			active[embeddings.GenerateServerHash(name, s.Command, s.Args, s.Env)] = struct{}{}
		}
		if err := embedSvc.Cache().CleanupUnused(active); err != nil {
			logger.Warnw("facade: embedding cache cleanup failed", "error", err.Error())
		}
	}

	defs, err := skills.Load(cfg.SkillsPath)
	switch {
	case err == nil:
		for _, d := range defs {
			reg.RegisterSkill(ctx, toRegistrySkill(d))
		}
	case os.IsNotExist(err):
		logger.Infow("facade: no skills file found, continuing without skills", "path", cfg.SkillsPath)
	default:
		return nil, fmt.Errorf("facade: load skills: %w", err)
	}

	engine := search.NewEngine(reg, embedSvc, vectorMode)
	return New(reg, engine), nil
}

func toRegistrySkill(d skills.Definition) registry.Skill {
	steps := make([]registry.SkillStep, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = registry.SkillStep{
			Tool:        s.Tool,
			Server:      s.Server,
			Args:        s.Args,
			ResultVar:   s.ResultVar,
			Description: s.Description,
		}
	}
	return registry.Skill{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
		Steps:       steps,
	}
}
