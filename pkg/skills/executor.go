package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
)

// Dispatcher is the narrow surface the executor needs to invoke a resolved
// tool, whether upstream or (recursively) another skill. pkg/dispatch
// implements this.
type Dispatcher interface {
	ExecuteTool(ctx context.Context, tool *registry.Record, args map[string]any, reg *registry.Registry) (any, error)
}

// ToolNotFoundError surfaces a step whose tool could not be resolved.
type ToolNotFoundError struct {
	Tool   string
	Server string
}

func (e *ToolNotFoundError) Error() string {
	if e.Server != "" {
		return fmt.Sprintf("skills: tool not found: %s/%s", e.Server, e.Tool)
	}
	return fmt.Sprintf("skills: tool not found: %s", e.Tool)
}

// Execute runs a skill's steps in order against a shallow copy of args,
// returning the raw, unprocessed result of the final step.
func Execute(ctx context.Context, dispatcher Dispatcher, reg *registry.Registry, rec *registry.Record, args map[string]any) (any, error) {
	context_ := shallowCopy(args)
	var lastResult any

	for _, step := range rec.Steps {
		substituted := substitute(step.Args, context_)

		tool, err := resolveStepTool(reg, step)
		if err != nil {
			return nil, err
		}

		stepArgsMap, ok := substituted.(map[string]any)
		if !ok {
			stepArgsMap = map[string]any{}
		}

		result, err := dispatcher.ExecuteTool(ctx, tool, stepArgsMap, reg)
		if err != nil {
			return nil, err
		}

		if step.ResultVar != "" {
			context_[step.ResultVar] = postProcess(result)
		}
		lastResult = result
	}

	return lastResult, nil
}

// resolveStepTool implements §4.6 step 2: explicit server wins; otherwise
// scan by name, warning if more than one match exists.
func resolveStepTool(reg *registry.Registry, step registry.SkillStep) (*registry.Record, error) {
	if step.Server != "" {
		tool, ok := reg.GetTool(step.Server, step.Tool)
		if !ok {
			return nil, &ToolNotFoundError{Tool: step.Tool, Server: step.Server}
		}
		return tool, nil
	}

	matches := reg.FindByName(step.Tool)
	if len(matches) == 0 {
		return nil, &ToolNotFoundError{Tool: step.Tool}
	}
	if len(matches) > 1 {
		logger.Warnw("skills: ambiguous tool name, using first match",
			"tool", step.Tool, "chosen_server", matches[0].Server)
	}
	return matches[0], nil
}

// postProcess implements §4.6 step 4: bind the bare text of a
// {content:[{type:"text",...}]} shaped result, otherwise the whole result.
func postProcess(result any) any {
	if r, ok := result.(*mcp.CallToolResult); ok {
		if r != nil && len(r.Content) > 0 {
			if tc, ok := r.Content[0].(mcp.TextContent); ok {
				return tc.Text
			}
		}
		return result
	}
	m, ok := result.(map[string]any)
	if !ok {
		return result
	}
	content, ok := m["content"].([]any)
	if !ok || len(content) == 0 {
		return result
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return result
	}
	if first["type"] != "text" {
		return result
	}
	text, ok := first["text"].(string)
	if !ok {
		return result
	}
	return text
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// substitute implements §4.6's template resolver as recursive descent: a
// string that is entirely one placeholder preserves the bound value's
// type; any other string gets each placeholder replaced with
// toStringValue(value), leaving unbound placeholders literal. Arrays and
// objects are substituted into fresh structures.
func substitute(value any, context map[string]any) any {
	switch v := value.(type) {
	case string:
		return substituteString(v, context)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = substitute(item, context)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substitute(item, context)
		}
		return out
	default:
		return v
	}
}

func substituteString(s string, context map[string]any) any {
	if name, ok := wholePlaceholder(s); ok {
		if val, bound := context[name]; bound {
			return val
		}
		return s
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		name := strings.TrimSpace(rest[start+2 : end])
		if val, bound := context[name]; bound {
			b.WriteString(toStringValue(val))
		} else {
			b.WriteString(rest[start : end+2])
		}
		rest = rest[end+2:]
	}
	return b.String()
}

// toStringValue mimics JavaScript's String(value) coercion for the
// textual-substitution case: arrays join their elements with commas (no
// brackets or spaces), matching the reference behaviour the template
// resolver must reproduce.
func toStringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = toStringValue(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// wholePlaceholder reports whether s is exactly one {{ name }} placeholder
// with no second "{{" after it starts, per §4.6.
func wholePlaceholder(s string) (string, bool) {
	trimmed := s
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	if strings.Contains(inner, "{{") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}
