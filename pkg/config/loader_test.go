package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
	return dir
}

func TestInitialize_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, 50, cfg.Supervisor.MaxIterations)
	assert.True(t, cfg.Stores.Graph.IsEnabled())
	assert.True(t, cfg.Whitelist.IsEnabled())
}

func TestInitialize_UserValuesOverrideDefaults(t *testing.T) {
	dir := writeConfig(t, `
monitor:
  interval_s: 300
  workers: 4
supervisor:
  max_iterations: 25
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, 4, cfg.Monitor.Workers)
	assert.Equal(t, 25, cfg.Supervisor.MaxIterations)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1500, cfg.Ingest.ChunkMaxChars)
	assert.Equal(t, "./data/processed_files.json", cfg.Monitor.LedgerPath)
}

func TestInitialize_ExpandsEnvTemplates(t *testing.T) {
	t.Setenv("TEST_GRAPH_URI", "bolt://graph.internal:7687")
	dir := writeConfig(t, `
stores:
  graph:
    uri: "{{.TEST_GRAPH_URI}}"
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "bolt://graph.internal:7687", cfg.Stores.Graph.URI)
}

func TestInitialize_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "interval below floor",
			yaml:    "monitor:\n  interval_s: 5\n",
			wantErr: "interval_s",
		},
		{
			name:    "inverted chunk bounds",
			yaml:    "ingest:\n  chunk_min_chars: 2000\n  chunk_max_chars: 100\n",
			wantErr: "chunk_min_chars",
		},
		{
			name:    "zero supervisor budget",
			yaml:    "supervisor:\n  max_iterations: -1\n",
			wantErr: "max_iterations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.yaml)
			_, err := Initialize(context.Background(), dir)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidationFailed))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitialize_BothStoresDisabledRejected(t *testing.T) {
	dir := writeConfig(t, `
stores:
  graph:
    enabled: false
  relational:
    enabled: false
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

func TestInitialize_InvalidYAML(t *testing.T) {
	dir := writeConfig(t, "monitor: [not: a: mapping\n")
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestExpandEnv_PreservesLiteralDollar(t *testing.T) {
	in := []byte(`pattern: "^secret.*$"`)
	assert.Equal(t, in, ExpandEnv(in))
}

func TestExpandEnv_MissingVariableExpandsEmpty(t *testing.T) {
	out := ExpandEnv([]byte(`key: "{{.DEFINITELY_NOT_SET_ANYWHERE}}"`))
	assert.Equal(t, `key: ""`, string(out))
}
