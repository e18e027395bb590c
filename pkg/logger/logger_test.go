package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"DEBUG", "debug"},
		{"warn", "warn"},
		{"WARNING", "warn"},
		{"error", "error"},
		{"", "info"},
		{"bogus", "info"},
	}
	for _, tt := range tests {
		got := parseLevel(tt.in)
		assert.Equal(t, tt.want, got.String())
	}
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	assert.True(t, parseBool("true", false))
	assert.True(t, parseBool("1", false))
	assert.False(t, parseBool("false", true))
	assert.Equal(t, true, parseBool("", true))
	assert.Equal(t, false, parseBool("not-a-bool", false))
}

func TestLogLevelsWriteToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	prev := singleton.Load()
	t.Cleanup(func() { singleton.Store(prev) })

	singleton.Store(newLogger("DEBUG", logPath, "true"))

	Info("info message")
	Warnf("warn %s", "formatted")
	Errorw("error kv", "key", "val")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "info message")
	assert.Contains(t, content, "warn formatted")
	assert.Contains(t, content, "error kv")
}

func TestGetReturnsSingleton(t *testing.T) {
	require.NotNil(t, Get())
}

func TestInitializeIsIdempotent(t *testing.T) {
	Initialize()
	Initialize()
	require.NotNil(t, Get())
}
