// Package extract pulls structured metadata (versions, model numbers, error
// codes, part numbers) out of document text using the configured rule sets.
package extract

import (
	"strings"

	"github.com/krai-ai/krai-engine/internal/patterns"
)

// VersionResult is an extracted and validated version string.
type VersionResult struct {
	Version    string
	Category   string
	Confidence float64
}

// VersionExtractor applies ordered version patterns with manufacturer
// preferences.
type VersionExtractor struct {
	rules *patterns.VersionRules
}

// NewVersionExtractor creates a version extractor over a rule snapshot.
func NewVersionExtractor(snap *patterns.Snapshot) *VersionExtractor {
	return &VersionExtractor{rules: snap.Versions}
}

// Extract returns the first validated version candidate, or ok=false when
// none is found. Categories are searched in the configured order, with the
// manufacturer's preferred categories moved to the front; the search stops
// at the first category that yields a valid candidate. Confidence decays
// with the category's position in the effective order.
func (e *VersionExtractor) Extract(text, manufacturer string) (VersionResult, bool) {
	for pos, name := range e.searchOrder(manufacturer) {
		cat := e.rules.Categories[name]
		if cat == nil {
			continue
		}

		for _, re := range cat.Patterns {
			match := re.FindStringSubmatch(text)
			if match == nil {
				continue
			}

			version := formatVersion(cat.OutputFormat, match[1:])
			if !e.valid(version) {
				continue
			}

			confidence := 1.0 - 0.1*float64(pos)
			if confidence < 0 {
				confidence = 0
			}
			return VersionResult{Version: version, Category: name, Confidence: confidence}, true
		}
	}

	return VersionResult{}, false
}

// searchOrder returns category names with the manufacturer's preferred
// categories first.
func (e *VersionExtractor) searchOrder(manufacturer string) []string {
	order := e.rules.SearchOrder
	prefs, ok := e.rules.Manufacturer[manufacturer]
	if !ok || len(prefs.PreferredPatterns) == 0 {
		return order
	}

	preferred := make(map[string]bool, len(prefs.PreferredPatterns))
	reordered := make([]string, 0, len(order))
	for _, name := range prefs.PreferredPatterns {
		preferred[name] = true
		reordered = append(reordered, name)
	}
	for _, name := range order {
		if !preferred[name] {
			reordered = append(reordered, name)
		}
	}
	return reordered
}

func (e *VersionExtractor) valid(version string) bool {
	v := e.rules.Validation
	if version == "" {
		return false
	}
	if v.MaxLength > 0 && len(version) > v.MaxLength {
		return false
	}
	if v.AllowedChars != nil && !v.AllowedChars.MatchString(version) {
		return false
	}
	for _, re := range v.ForbiddenPatterns {
		if re.MatchString(version) {
			return false
		}
	}
	return true
}

// formatVersion renders the capture groups through the category's output
// format. The first group binds {version} and {edition}; the second binds
// {date}. Placeholders without a bound group are removed along with their
// separators.
func formatVersion(format string, groups []string) string {
	if format == "" {
		if len(groups) > 0 {
			return strings.TrimSpace(groups[0])
		}
		return ""
	}

	first, second := "", ""
	if len(groups) > 0 {
		first = groups[0]
	}
	if len(groups) > 1 {
		second = groups[1]
	}

	usesFirst := strings.Contains(format, "{version}") || strings.Contains(format, "{edition}")
	dateVal := second
	if dateVal == "" && !usesFirst {
		dateVal = first
	}

	out := format
	out = strings.ReplaceAll(out, "{version}", first)
	out = strings.ReplaceAll(out, "{edition}", first)
	out = strings.ReplaceAll(out, "{date}", dateVal)

	out = strings.Trim(out, " ,/-")
	return strings.TrimSpace(out)
}
