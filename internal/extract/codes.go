package extract

import (
	"regexp"
	"strings"

	"github.com/krai-ai/krai-engine/internal/patterns"
)

// CodeResult is one extracted error code with its resolved description and
// category.
type CodeResult struct {
	Code        string
	Description string
	Category    string
}

// PartResult is one extracted part number with its resolved description.
type PartResult struct {
	PartNumber  string
	Description string
}

// CodeExtractor pulls error codes and part numbers out of document text
// using the manufacturer's rule set.
type CodeExtractor struct {
	snap *patterns.Snapshot
}

// NewCodeExtractor creates a code extractor over a rule snapshot.
func NewCodeExtractor(snap *patterns.Snapshot) *CodeExtractor {
	return &CodeExtractor{snap: snap}
}

// ErrorCodes returns the validated, deduplicated error codes found in text,
// in order of first appearance. Candidates failing the manufacturer's
// validation regex are dropped. Descriptions come from the examples table,
// falling back to text harvested around the code via the description
// templates; codes the document never explains resolve to "Unknown" with
// category "unknown".
func (e *CodeExtractor) ErrorCodes(text, manufacturer string) []CodeResult {
	rules := e.snap.ManufacturerCodes(manufacturer)
	if rules == nil {
		return nil
	}

	seen := make(map[string]bool)
	var results []CodeResult

	for _, re := range rules.Patterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			code := match[0]
			if len(match) > 1 && match[1] != "" {
				code = match[1]
			}
			code = strings.TrimSpace(code)
			if code == "" || seen[code] {
				continue
			}
			if rules.ValidationRegex != nil && !rules.ValidationRegex.MatchString(code) {
				continue
			}
			seen[code] = true

			result := CodeResult{Code: code, Description: "Unknown", Category: "unknown"}
			if example, ok := rules.Examples[code]; ok {
				result.Description = example.Description
				result.Category = example.Category
			} else if harvested := harvestDescription(text, code, rules.DescriptionTemplates); harvested != "" {
				result.Description = harvested
			}
			results = append(results, result)
		}
	}

	return results
}

// harvestDescription binds the code into each description template and
// returns the first capture found in the surrounding text.
func harvestDescription(text, code string, templates []string) string {
	for _, tmpl := range templates {
		re, err := regexp.Compile(strings.ReplaceAll(tmpl, "{code}", regexp.QuoteMeta(code)))
		if err != nil {
			continue
		}
		match := re.FindStringSubmatch(text)
		if len(match) > 1 {
			return strings.TrimSpace(match[1])
		}
	}
	return ""
}

// PartNumbers returns the deduplicated part numbers found in text, in order
// of first appearance. Parts without a known description resolve to
// "unknown".
func (e *CodeExtractor) PartNumbers(text, manufacturer string) []PartResult {
	rules := e.snap.ManufacturerCodes(manufacturer)
	if rules == nil {
		return nil
	}

	seen := make(map[string]bool)
	var results []PartResult

	for _, re := range rules.PartNumberPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			part := match[0]
			if len(match) > 1 && match[1] != "" {
				part = match[1]
			}
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true

			description := rules.PartExamples[part]
			if description == "" {
				description = "unknown"
			}
			results = append(results, PartResult{PartNumber: part, Description: description})
		}
	}

	return results
}
