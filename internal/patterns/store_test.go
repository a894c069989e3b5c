package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configDir = "../../configs"

func TestLoadRuleFiles(t *testing.T) {
	store, err := NewStore(configDir)
	require.NoError(t, err)

	snap := store.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(1), snap.Generation)

	assert.NotNil(t, snap.ManufacturerCodes("hp"))
	assert.NotNil(t, snap.ManufacturerCodes("lexmark"))
	assert.Nil(t, snap.ManufacturerCodes("nonexistent"))

	assert.NotEmpty(t, snap.Versions.SearchOrder)
	assert.Contains(t, snap.Versions.Categories, "edition")

	km := snap.PlaceholderFor("konica_minolta")
	require.NotNil(t, km)
	assert.True(t, km.KnownModels["C450i"])
	assert.Contains(t, km.Series, "i_series")

	assert.NotEmpty(t, snap.Classifier.Manufacturers)
	assert.NotEmpty(t, snap.Classifier.DocumentTypes)
}

func TestValidationRegexCompiled(t *testing.T) {
	store, err := NewStore(configDir)
	require.NoError(t, err)

	lexmark := store.Snapshot().ManufacturerCodes("lexmark")
	require.NotNil(t, lexmark)
	require.NotNil(t, lexmark.ValidationRegex)

	assert.True(t, lexmark.ValidationRegex.MatchString("121.54"))
	assert.True(t, lexmark.ValidationRegex.MatchString("200.03"))
	assert.False(t, lexmark.ValidationRegex.MatchString("121.0X"))
}

func TestReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	store, err := NewStore(configDir)
	require.NoError(t, err)

	before := store.Snapshot()

	err = store.Reload(t.TempDir())
	assert.Error(t, err)

	after := store.Snapshot()
	assert.Same(t, before, after)
	assert.Equal(t, uint64(1), after.Generation)
}

func TestReloadRejectsInvalidRegex(t *testing.T) {
	dir := t.TempDir()
	copyConfigs(t, dir)

	broken := `{"manufacturers": {"hp": {"patterns": ["(unclosed"], "validation_regex": "", "examples": {}}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ErrorCodeFile), []byte(broken), 0o644))

	store, err := NewStore(configDir)
	require.NoError(t, err)

	err = store.Reload(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
	assert.Equal(t, uint64(1), store.Snapshot().Generation)
}

func TestReloadBumpsGeneration(t *testing.T) {
	store, err := NewStore(configDir)
	require.NoError(t, err)

	require.NoError(t, store.Reload(configDir))
	assert.Equal(t, uint64(2), store.Snapshot().Generation)
}

func TestStrategyForPrecedence(t *testing.T) {
	store, err := NewStore(configDir)
	require.NoError(t, err)
	snap := store.Snapshot()

	// Document type override wins.
	sm := snap.StrategyFor("service_manual", "konica_minolta")
	assert.Equal(t, "service_manual", sm.Method)
	assert.Equal(t, 1200, sm.ChunkSize)

	// Manufacturer multiplier applies without a type override.
	km := snap.StrategyFor("unknown", "konica_minolta")
	assert.Equal(t, "generic", km.Method)
	assert.Equal(t, 1200, km.ChunkSize) // 1000 * 1.2

	// Defaults otherwise.
	def := snap.StrategyFor("unknown", "unknown")
	assert.Equal(t, 1000, def.ChunkSize)
	assert.Equal(t, 150, def.ChunkOverlap)
	assert.Equal(t, 50, def.MinChunkSize)
}

func copyConfigs(t *testing.T, dst string) {
	t.Helper()
	for _, name := range []string{ErrorCodeFile, VersionFile, PlaceholderFile, ChunkFile, ClassificationFile} {
		data, err := os.ReadFile(filepath.Join(configDir, name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, name), []byte(data), 0o644))
	}
}
