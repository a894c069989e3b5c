// Package classify identifies the manufacturer and document type of a
// document from its filename and content.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/krai-ai/krai-engine/internal/patterns"
)

// Filename matches carry fixed confidences; content matches are scored.
const (
	filenameManufacturerConfidence = 0.9
	filenameDocTypeConfidence      = 0.8
	seriesCascadeConfidence        = 0.9

	contentPatternWeight = 0.3
	modelSeriesWeight    = 0.5
	keywordWeight        = 0.1
	docTypePatternWeight = 0.2

	manufacturerNormalizer = 5.0
	docTypeNormalizer      = 10.0
)

// Result is a classification outcome. Unknown axes report "unknown" with
// zero confidence. HybridConfidence is the single scalar summarizing both
// axes and the agreement between the filename and content passes; it is
// what gets persisted on the document.
type Result struct {
	Manufacturer           string
	ManufacturerConfidence float64
	DocumentType           string
	DocTypeConfidence      float64
	HybridConfidence       float64
	SeriesName             string
	Method                 string // filename, content, or hybrid
}

// Classifier runs the hybrid filename plus content classification.
type Classifier struct {
	rules *patterns.ClassifierRules
}

// New creates a classifier over a rule snapshot.
func New(snap *patterns.Snapshot) *Classifier {
	return &Classifier{rules: snap.Classifier}
}

type axisResult struct {
	value      string
	confidence float64
}

// Classify combines the filename pass and the content pass. The filename
// wins an axis outright at high confidence; otherwise any content signal
// wins; the filename result is the fallback.
func (c *Classifier) Classify(filename, content string) Result {
	head := strings.ToLower(content)
	lowerName := strings.ToLower(filename)

	fnMfr, fnType := c.classifyFilename(lowerName)
	ctMfr, ctType := c.classifyContent(head)

	mfr := mergeAxis(fnMfr, ctMfr)
	docType := mergeAxis(fnType, ctType)

	result := Result{
		Manufacturer:           mfr.value,
		ManufacturerConfidence: mfr.confidence,
		DocumentType:           docType.value,
		DocTypeConfidence:      docType.confidence,
		Method:                 "hybrid",
	}

	// Series cascade: a recognized model series pins the manufacturer when
	// the merged result is weaker.
	if result.ManufacturerConfidence < seriesCascadeConfidence {
		for _, series := range c.rules.Series {
			if series.Pattern.MatchString(content) || series.Pattern.MatchString(filename) {
				result.Manufacturer = series.Manufacturer
				result.ManufacturerConfidence = seriesCascadeConfidence
				result.SeriesName = series.SeriesName
				break
			}
		}
	}

	// Hybrid confidence: mean of the two axes, boosted when the filename and
	// content passes agree.
	hybrid := (result.ManufacturerConfidence + result.DocTypeConfidence) / 2
	mfrAgree := fnMfr.value != "unknown" && fnMfr.value == ctMfr.value
	typeAgree := fnType.value != "unknown" && fnType.value == ctType.value
	switch {
	case mfrAgree && typeAgree:
		hybrid *= 1.2
	case mfrAgree || typeAgree:
		hybrid *= 1.1
	}
	result.HybridConfidence = clamp(hybrid)

	return result
}

// ApplyMetadataBoost raises the hybrid confidence when downstream extraction
// confirmed models or a version.
func (r *Result) ApplyMetadataBoost(modelsFound, versionFound bool) {
	if modelsFound {
		r.HybridConfidence = clamp(r.HybridConfidence * 1.1)
	}
	if versionFound {
		r.HybridConfidence = clamp(r.HybridConfidence * 1.1)
	}
}

func (c *Classifier) classifyFilename(lowerName string) (axisResult, axisResult) {
	mfr := axisResult{value: "unknown"}
	for _, name := range sortedKeys(c.rules.Manufacturers) {
		for _, re := range c.rules.Manufacturers[name].FilenamePatterns {
			if re.MatchString(lowerName) {
				mfr = axisResult{value: name, confidence: filenameManufacturerConfidence}
				break
			}
		}
		if mfr.value != "unknown" {
			break
		}
	}

	docType := axisResult{value: "unknown"}
	for _, name := range sortedKeys(c.rules.DocumentTypes) {
		for _, kw := range c.rules.DocumentTypes[name].FilenameKeywords {
			if strings.Contains(lowerName, kw) {
				docType = axisResult{value: name, confidence: filenameDocTypeConfidence}
				break
			}
		}
		if docType.value != "unknown" {
			break
		}
	}

	return mfr, docType
}

func (c *Classifier) classifyContent(head string) (axisResult, axisResult) {
	mfr := axisResult{value: "unknown"}
	var bestMfrScore float64
	for _, name := range sortedKeys(c.rules.Manufacturers) {
		rules := c.rules.Manufacturers[name]
		score := contentPatternWeight*countMatches(rules.ContentPatterns, head) +
			modelSeriesWeight*countMatches(rules.ModelSeries, head)
		if score > bestMfrScore {
			bestMfrScore = score
			mfr = axisResult{value: name, confidence: clamp(score / manufacturerNormalizer)}
		}
	}

	docType := axisResult{value: "unknown"}
	var bestTypeScore float64
	for _, name := range sortedKeys(c.rules.DocumentTypes) {
		rules := c.rules.DocumentTypes[name]
		score := keywordWeight*countKeywords(rules.Keywords, head) +
			docTypePatternWeight*countMatches(rules.ContentPatterns, head)
		if score > bestTypeScore {
			bestTypeScore = score
			docType = axisResult{value: name, confidence: clamp(score / docTypeNormalizer)}
		}
	}

	return mfr, docType
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mergeAxis(filename, content axisResult) axisResult {
	if filename.value != "unknown" && filename.confidence >= 0.8 {
		return filename
	}
	if content.value != "unknown" && content.confidence > 0 {
		return content
	}
	return filename
}

func countMatches(res []*regexp.Regexp, head string) float64 {
	var hits float64
	for _, re := range res {
		hits += float64(len(re.FindAllStringIndex(head, -1)))
	}
	return hits
}

func countKeywords(keywords []string, head string) float64 {
	var hits float64
	for _, kw := range keywords {
		hits += float64(strings.Count(head, kw))
	}
	return hits
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
