package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkillsFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_ValidSkill(t *testing.T) {
	path := writeSkillsFile(t, `
skills:
  - name: greet
    description: Greets a user
    parameters:
      name:
        type: string
    steps:
      - tool: echo
        args:
          message: "Hello {{name}}"
        result_var: greeting
`)

	defs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "greet", defs[0].Name)
	assert.Len(t, defs[0].Steps, 1)
	assert.Equal(t, "echo", defs[0].Steps[0].Tool)
}

func TestLoad_MalformedStructure(t *testing.T) {
	path := writeSkillsFile(t, `
skills:
  - description: missing a name
    steps: []
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RecursiveSkillRejected(t *testing.T) {
	path := writeSkillsFile(t, `
skills:
  - name: a
    steps:
      - tool: b
        args: {}
  - name: b
    steps:
      - tool: a
        args: {}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursive")
}

func TestLoad_SelfReferenceRejected(t *testing.T) {
	path := writeSkillsFile(t, `
skills:
  - name: loopy
    steps:
      - tool: loopy
        args: {}
`)

	_, err := Load(path)
	require.Error(t, err)
}
