// Package skills loads declarative multi-step tool macros from YAML and
// executes them against the tool registry, substituting {{var}} template
// placeholders into each step's arguments.
package skills

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/fussraider/tool-search-tools-mcp/pkg/registry"
)

// Step mirrors registry.SkillStep in YAML-friendly field tags.
type Step struct {
	Tool        string         `yaml:"tool"`
	Server      string         `yaml:"server"`
	Args        map[string]any `yaml:"args"`
	ResultVar   string         `yaml:"result_var"`
	Description string         `yaml:"description"`
}

// Definition is one YAML skill entry.
type Definition struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
	Steps       []Step         `yaml:"steps"`
}

type file struct {
	Skills []Definition `yaml:"skills"`
}

// skillsSchema describes the structural shape of skills.yaml: enough for
// gojsonschema to catch missing/mistyped fields before the executor ever
// sees a skill.
const skillsSchema = `{
  "type": "object",
  "required": ["skills"],
  "properties": {
    "skills": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "steps"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "parameters": {"type": "object"},
          "steps": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["tool", "args"],
              "properties": {
                "tool": {"type": "string", "minLength": 1},
                "server": {"type": "string"},
                "args": {"type": "object"},
                "result_var": {"type": "string"},
                "description": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

// Load reads path and returns its skill definitions. A missing file is
// reported via os.IsNotExist on the returned error so the facade can treat
// it as "no skills" rather than fatal; a present-but-malformed file
// returns a single aggregated structural error.
func Load(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("skills: parse %s: %w", path, err)
	}

	if err := validateStructure(raw); err != nil {
		return nil, fmt.Errorf("skills: %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("skills: decode %s: %w", path, err)
	}

	if err := detectCycles(f.Skills); err != nil {
		return nil, fmt.Errorf("skills: %s: %w", path, err)
	}

	return f.Skills, nil
}

// validateStructure runs the parsed YAML document (as a generic value)
// through the schema above, folding every violation into one aggregated
// error.
func validateStructure(raw any) error {
	normalized := normalizeYAMLValue(raw)

	docBytes, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("re-encode document: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(skillsSchema)
	docLoader := gojsonschema.NewBytesLoader(docBytes)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("run schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid skills file: %s", strings.Join(msgs, "; "))
}

// normalizeYAMLValue converts yaml.v3's map[string]interface{} decode
// output (and map[interface{}]interface{} from older encodings) into
// plain JSON-marshalable types.
func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalizeYAMLValue(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLValue(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	default:
		return val
	}
}

// detectCycles refuses a skills file at load time if any skill's steps
// reference another skill (by tool name, no server set) in a way that
// forms a cycle, resolving the runtime-recursion open question by failing
// fast instead of guarding every recursive frame.
func detectCycles(defs []Definition) error {
	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(defs))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("recursive skill reference: %s", strings.Join(append(path, name), " -> "))
		}
		def, isSkill := byName[name]
		if !isSkill {
			return nil
		}
		state[name] = visiting
		for _, step := range def.Steps {
			if step.Server != "" && step.Server != registry.InternalServer {
				continue
			}
			if err := visit(step.Tool, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, d := range defs {
		if err := visit(d.Name, nil); err != nil {
			return err
		}
	}
	return nil
}
