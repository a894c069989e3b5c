package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderExpandsToActualModels(t *testing.T) {
	e := NewModelExtractor(testSnapshot(t))

	text := "Technical Bulletin\nAffected models: Cxx0i and Cxx1i series.\nCase1: image quality"
	results := e.Extract(text, "konica_minolta")

	models := modelNames(results)
	assert.Equal(t, []string{"C450i", "C550i", "C650i", "C750i"}, models)
	for _, r := range results {
		assert.Equal(t, SourcePlaceholder, r.Source)
		assert.InDelta(t, 0.8, r.Confidence, 0.001)
	}
}

func TestExactModelBeatsPlaceholder(t *testing.T) {
	e := NewModelExtractor(testSnapshot(t))

	text := "Applies to bizhub C450i and the Cxx0i family."
	results := e.Extract(text, "konica_minolta")

	byModel := make(map[string]ModelResult)
	for _, r := range results {
		byModel[r.Model] = r
	}

	require.Contains(t, byModel, "C450i")
	assert.Equal(t, SourceExact, byModel["C450i"].Source)
	assert.InDelta(t, 1.0, byModel["C450i"].Confidence, 0.001)

	// The rest of the placeholder family still appears at lower confidence.
	require.Contains(t, byModel, "C550i")
	assert.Equal(t, SourcePlaceholder, byModel["C550i"].Source)
}

func TestUnknownExactModelPenalized(t *testing.T) {
	e := NewModelExtractor(testSnapshot(t))

	results := e.Extract("bizhub C999", "konica_minolta")
	require.Len(t, results, 1)
	assert.Equal(t, "C999", results[0].Model)
	assert.InDelta(t, 0.5, results[0].Confidence, 0.001)
}

func TestExpandPlaceholderGeneratesAndFilters(t *testing.T) {
	known := map[string]bool{"C450i": true, "C950i": true, "C111i": true}

	models := expandPlaceholder("Cx50i", known)
	assert.Equal(t, []string{"C450i", "C950i"}, models)

	assert.Empty(t, expandPlaceholder("Zx9", known))
}

func TestExtractNoRulesForManufacturer(t *testing.T) {
	e := NewModelExtractor(testSnapshot(t))
	assert.Nil(t, e.Extract("bizhub C450i", "unknown"))
}

func TestHPExactModels(t *testing.T) {
	e := NewModelExtractor(testSnapshot(t))

	results := e.Extract("HP LaserJet Enterprise MFP E78630 service manual", "hp")
	models := modelNames(results)
	assert.Contains(t, models, "E78630")
}

func modelNames(results []ModelResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Model)
	}
	return names
}
