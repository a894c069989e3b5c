package extract

import (
	"sort"
	"strings"

	"github.com/krai-ai/krai-engine/internal/patterns"
)

// Model match sources in descending confidence.
const (
	SourceExact       = "exact"
	SourcePlaceholder = "placeholder"
	SourceSeries      = "series"

	exactConfidence       = 1.0
	placeholderConfidence = 0.8
	seriesConfidence      = 0.6
	unknownExactPenalty   = 0.5
)

// ModelResult is one extracted model number.
type ModelResult struct {
	Model      string
	Source     string
	SeriesName string
	Confidence float64
}

// ModelExtractor resolves concrete model numbers, expands placeholder
// notation, and infers models from series names.
type ModelExtractor struct {
	snap *patterns.Snapshot
}

// NewModelExtractor creates a model extractor over a rule snapshot.
func NewModelExtractor(snap *patterns.Snapshot) *ModelExtractor {
	return &ModelExtractor{snap: snap}
}

// Extract returns the deduplicated, sorted model numbers found in text for
// the given manufacturer. The highest-confidence source wins per model.
func (e *ModelExtractor) Extract(text, manufacturer string) []ModelResult {
	rules := e.snap.PlaceholderFor(manufacturer)
	if rules == nil {
		return nil
	}

	byModel := make(map[string]ModelResult)

	record := func(r ModelResult) {
		existing, ok := byModel[r.Model]
		if !ok || r.Confidence > existing.Confidence {
			byModel[r.Model] = r
		}
	}

	// Exact model numbers.
	for _, re := range rules.ExactPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			model := match[0]
			if len(match) > 1 {
				model = match[1]
			}
			model = strings.TrimSpace(model)
			if model == "" {
				continue
			}
			confidence := exactConfidence
			if !rules.KnownModels[model] {
				confidence = exactConfidence * unknownExactPenalty
			}
			record(ModelResult{Model: model, Source: SourceExact, Confidence: confidence})
		}
	}

	// Placeholder notation such as Cxx0i, expanded through the series
	// entry's actual model list, or generated over digit wildcards and
	// filtered against known models.
	for _, key := range sortedSeriesKeys(rules.Series) {
		series := rules.Series[key]
		for _, re := range series.Patterns {
			match := re.FindString(text)
			if match == "" {
				continue
			}

			expanded := series.ActualModels
			if len(expanded) == 0 {
				expanded = expandPlaceholder(match, rules.KnownModels)
			}
			for _, model := range expanded {
				record(ModelResult{
					Model:      model,
					Source:     SourcePlaceholder,
					SeriesName: series.SeriesName,
					Confidence: series.Confidence,
				})
			}
		}

		// Series name mentions pull in the series models at low confidence.
		if series.SeriesName != "" && len(series.ActualModels) > 0 &&
			strings.Contains(strings.ToLower(text), strings.ToLower(series.SeriesName)) {
			for _, model := range series.ActualModels {
				record(ModelResult{
					Model:      model,
					Source:     SourceSeries,
					SeriesName: series.SeriesName,
					Confidence: seriesConfidence,
				})
			}
		}
	}

	results := make([]ModelResult, 0, len(byModel))
	for _, r := range byModel {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Model < results[j].Model
	})
	return results
}

// expandPlaceholder substitutes every digit 0-9 for each 'x' wildcard and
// keeps only candidates present in the known model table.
func expandPlaceholder(placeholder string, known map[string]bool) []string {
	candidates := []string{""}
	for _, ch := range placeholder {
		if ch == 'x' || ch == 'X' {
			next := make([]string, 0, len(candidates)*10)
			for _, prefix := range candidates {
				for d := '0'; d <= '9'; d++ {
					next = append(next, prefix+string(d))
				}
			}
			candidates = next
		} else {
			for i := range candidates {
				candidates[i] += string(ch)
			}
		}
	}

	var models []string
	for _, c := range candidates {
		if known[c] {
			models = append(models, c)
		}
	}
	sort.Strings(models)
	return models
}

func sortedSeriesKeys(m map[string]*patterns.SeriesRule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
