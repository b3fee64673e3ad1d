package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.RenameSimilarity)
	assert.Equal(t, 10, cfg.MaxWarnings)
	assert.False(t, cfg.Logging.DebugMode)
}

func TestLoad_FromFile(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".phio"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".phio", "config.json"), []byte(`{
		"logging": {"debug_mode": true, "level": "debug"},
		"rename_similarity": 0.7,
		"max_warnings": 5
	}`), 0644))

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.RenameSimilarity)
	assert.Equal(t, 5, cfg.MaxWarnings)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PHIO_RENAME_SIMILARITY", "0.8")
	t.Setenv("PHIO_MAX_WARNINGS", "2")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.RenameSimilarity)
	assert.Equal(t, 2, cfg.MaxWarnings)
}

func TestLoad_RejectsOutOfRange(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".phio"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".phio", "config.json"),
		[]byte(`{"rename_similarity": 3.0, "max_warnings": -1}`), 0644))

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.RenameSimilarity)
	assert.Equal(t, 10, cfg.MaxWarnings)
}

func TestLoad_MalformedFile(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".phio"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".phio", "config.json"), []byte("{"), 0644))

	_, err := Load(ws)
	assert.Error(t, err)
}
