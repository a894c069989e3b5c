package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krai-ai/krai-engine/internal/patterns"
)

func testSnapshot(t *testing.T) *patterns.Snapshot {
	t.Helper()
	store, err := patterns.NewStore("../../configs")
	require.NoError(t, err)
	return store.Snapshot()
}

func TestExtractEditionWithDate(t *testing.T) {
	e := NewVersionExtractor(testSnapshot(t))

	text := "HP LaserJet Enterprise MFP\nService Manual\nEdition 3, 5/2024\n"
	result, ok := e.Extract(text, "hp")
	require.True(t, ok)
	assert.Equal(t, "3, 5/2024", result.Version)
	assert.Equal(t, "edition", result.Category)
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}

func TestExtractEditionWithoutDate(t *testing.T) {
	e := NewVersionExtractor(testSnapshot(t))

	result, ok := e.Extract("Edition 2", "hp")
	require.True(t, ok)
	assert.Equal(t, "2", result.Version)
}

func TestExtractExplicitVersion(t *testing.T) {
	e := NewVersionExtractor(testSnapshot(t))

	result, ok := e.Extract("Firmware notes. Version 4.12.7 applies.", "konica_minolta")
	require.True(t, ok)
	assert.Equal(t, "4.12.7", result.Version)
	assert.Equal(t, "version", result.Category)
}

func TestManufacturerPreferenceReordersCategories(t *testing.T) {
	e := NewVersionExtractor(testSnapshot(t))

	// Both a revision and a version appear; lexmark prefers revision.
	text := "Revision 1.2\nVersion 9.9.9"
	result, ok := e.Extract(text, "lexmark")
	require.True(t, ok)
	assert.Equal(t, "revision", result.Category)
	assert.Equal(t, "1.2", result.Version)
}

func TestLaterCategoryLowersConfidence(t *testing.T) {
	e := NewVersionExtractor(testSnapshot(t))

	// "Ver. 2.1" is found by the version category, second in the default
	// search order.
	result, ok := e.Extract("Ver. 2.1", "unknown")
	require.True(t, ok)
	assert.Equal(t, "2.1", result.Version)
	assert.Equal(t, "version", result.Category)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
}

func TestEarlierCategoryWinsOverLaterMatch(t *testing.T) {
	e := NewVersionExtractor(testSnapshot(t))

	// The edition comes first in the search order, so the search stops there
	// even though a version string also appears later in the text.
	text := "Edition 3 of this manual. Software Version 2.1 is unrelated."
	result, ok := e.Extract(text, "unknown")
	require.True(t, ok)
	assert.Equal(t, "3", result.Version)
	assert.Equal(t, "edition", result.Category)
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}

func TestNoVersionFound(t *testing.T) {
	e := NewVersionExtractor(testSnapshot(t))

	_, ok := e.Extract("no numbering here at all", "hp")
	assert.False(t, ok)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "3, 5/2024", formatVersion("{edition}, {date}", []string{"3", "5/2024"}))
	assert.Equal(t, "3", formatVersion("{edition}, {date}", []string{"3"}))
	assert.Equal(t, "5/2024", formatVersion("{date}", []string{"5/2024"}))
	assert.Equal(t, "1.2.3", formatVersion("{version}", []string{"1.2.3"}))
	assert.Equal(t, "1.2.3", formatVersion("", []string{"1.2.3"}))
}
