package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "matchchat.log")

	logger, err := New(path, "work", "debug")
	require.NoError(t, err)
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "work", entry["profile"])
	assert.Contains(t, entry, "ts")
	assert.Contains(t, entry, "pid")
}

func TestNewHonorsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchchat.log")

	logger, err := New(path, "main", "warn")
	require.NoError(t, err)
	logger.Info("dropped")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFileOnlyStillWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchchat.log")

	logger, err := New(path, "main", "info", FileOnly())
	require.NoError(t, err)
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
}
