package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ModeProduction, cfg.Processing.Mode)
	assert.Equal(t, 3, cfg.Processing.MaxConcurrentDocuments)
	assert.Equal(t, 10, cfg.Processing.MaxConcurrentChunks)
	assert.Equal(t, 768, cfg.Ollama.EmbeddingDimension)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
processing:
  mode: demo
  max_concurrent_documents: 5
ollama:
  base_url: http://models:11434
  embedding_model: custom-embed
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeDemo, cfg.Processing.Mode)
	assert.Equal(t, 5, cfg.Processing.MaxConcurrentDocuments)
	assert.Equal(t, "http://models:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "custom-embed", cfg.Ollama.EmbeddingModel)
	// Untouched values keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Processing.StageTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://envhost:11434")
	t.Setenv("EMBEDDING_MODEL", "env-embed")
	t.Setenv("EXECUTION_MODE", "embedding_only")
	t.Setenv("MAX_CONCURRENT", "7")
	t.Setenv("BATCH_SIZE", "42")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://envhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "env-embed", cfg.Ollama.EmbeddingModel)
	assert.Equal(t, ModeEmbeddingOnly, cfg.Processing.Mode)
	assert.Equal(t, 7, cfg.Processing.MaxConcurrentDocuments)
	assert.Equal(t, 42, cfg.Processing.BatchSize)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid execution mode")
}

func TestValidateRejectsBadConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.MaxConcurrentChunks = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
