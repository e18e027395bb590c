// Package dispatch implements the single entry point through which both
// the facade and the skills executor invoke a resolved tool, routing to
// either a live upstream MCP client or (recursively) the skills executor.
package dispatch

import (
	"context"
	"fmt"

	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
	"github.com/fussraider/tool-search-tools-mcp/pkg/skills"
)

// Dispatcher routes a resolved tool record to its execution path.
type Dispatcher struct{}

// New constructs a Dispatcher. It carries no state: every call takes the
// registry it should act against explicitly.
func New() *Dispatcher {
	return &Dispatcher{}
}

// ExecuteTool implements executeTool(tool, args, registry) per §4.7: skill
// records require a registry and delegate to the skills executor; every
// other record requires a live upstream client handle. Errors propagate
// unchanged.
func (d *Dispatcher) ExecuteTool(ctx context.Context, tool *registry.Record, args map[string]any, reg *registry.Registry) (any, error) {
	if tool.IsSkill {
		if reg == nil {
			return nil, fmt.Errorf("dispatch: skill %s requires a registry", tool.Name)
		}
		return skills.Execute(ctx, d, reg, tool, args)
	}
	return reg.CallUpstream(ctx, tool, args)
}

var _ skills.Dispatcher = (*Dispatcher)(nil)
