package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "embedder:\n  type: fastembed\n"))
	require.NoError(t, err)

	assert.Equal(t, 384, cfg.Embedder.Dimension)
	assert.Equal(t, 1000, cfg.Chunker.Size)
	require.NotNil(t, cfg.Chunker.Overlap)
	assert.Equal(t, 200, *cfg.Chunker.Overlap)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.InDelta(t, 0.7, *cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 3, cfg.Retrieval.TopKChunks)
	assert.Equal(t, 1, cfg.Retrieval.TopKImages)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
}

func TestLoadKeepsExplicitZeroOverlapAndTemperature(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
chunker:
  size: 500
  overlap: 0
llm:
  temperature: 0
`))
	require.NoError(t, err)

	require.NotNil(t, cfg.Chunker.Overlap)
	assert.Equal(t, 0, *cfg.Chunker.Overlap)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, *cfg.LLM.Temperature)
}

func TestLoadExpandsEnvReferences(t *testing.T) {
	t.Setenv("TEST_STORE_DIR", "/tmp/vectors")
	cfg, err := Load(writeConfig(t, "store:\n  dir: ${TEST_STORE_DIR}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vectors", cfg.Store.Dir)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "fastembed", cfg.Embedder.Type)
}

func TestLoadRejectsOverlapNotBelowSize(t *testing.T) {
	_, err := Load(writeConfig(t, "chunker:\n  size: 100\n  overlap: 100\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunker.overlap")
}

func TestLoadRejectsNegativeOverlap(t *testing.T) {
	_, err := Load(writeConfig(t, "chunker:\n  size: 100\n  overlap: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunker.overlap")
}
