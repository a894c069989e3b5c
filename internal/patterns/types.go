// Package patterns loads and serves the JSON rule files that drive
// classification, metadata extraction, and chunking. Rules are compiled
// eagerly at load time and served as immutable snapshots.
package patterns

import "regexp"

// CodeExample is the known description and category for one error code.
type CodeExample struct {
	Description string
	Category    string
}

// ErrorCodeRules holds compiled error-code and part-number rules for one
// manufacturer. DescriptionTemplates are regex templates with a literal
// {code} placeholder, bound to a concrete code at extraction time to harvest
// descriptions from the surrounding text.
type ErrorCodeRules struct {
	Patterns             []*regexp.Regexp
	ValidationRegex      *regexp.Regexp
	DescriptionTemplates []string
	Examples             map[string]CodeExample
	PartNumberPatterns   []*regexp.Regexp
	PartExamples         map[string]string
}

// VersionCategory is one named group of version patterns tried in order.
type VersionCategory struct {
	Name         string
	Patterns     []*regexp.Regexp
	RawPatterns  []string
	Description  string
	OutputFormat string
}

// VersionValidation constrains extracted version strings.
type VersionValidation struct {
	MaxLength         int
	AllowedChars      *regexp.Regexp
	ForbiddenPatterns []*regexp.Regexp
}

// ManufacturerVersionPrefs reorders version patterns for one manufacturer.
type ManufacturerVersionPrefs struct {
	PreferredPatterns []string
	DateFormat        string
}

// VersionRules is the full compiled version-extraction rule set.
type VersionRules struct {
	Categories   map[string]*VersionCategory
	SearchOrder  []string
	Validation   VersionValidation
	Manufacturer map[string]ManufacturerVersionPrefs
}

// SeriesRule describes one model-placeholder series for a manufacturer.
type SeriesRule struct {
	Key          string
	Patterns     []*regexp.Regexp
	RawPatterns  []string
	ActualModels []string
	SeriesName   string
	Confidence   float64
}

// PlaceholderRules holds model extraction rules for one manufacturer.
// ExactPatterns capture concrete model numbers; Series entries capture
// placeholder notation such as Cxx0i.
type PlaceholderRules struct {
	ExactPatterns []*regexp.Regexp
	Series        map[string]*SeriesRule
	KnownModels   map[string]bool
}

// ChunkStrategy is a resolved chunking configuration.
type ChunkStrategy struct {
	Method       string // generic, service_manual, technical_bulletin
	SplitRegex   *regexp.Regexp
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

// ChunkRules holds chunk sizing defaults, per-document-type strategies, and
// per-manufacturer size multipliers.
type ChunkRules struct {
	Defaults              ChunkStrategy
	Strategies            map[string]*ChunkStrategy
	ManufacturerMultiplier map[string]float64
}

// ClassifierRules holds filename and content classification patterns.
type ClassifierRules struct {
	Manufacturers map[string]*ManufacturerClassifier
	DocumentTypes map[string]*DocumentTypeClassifier
	Series        []*SeriesClassifier
}

// ManufacturerClassifier holds patterns identifying one manufacturer.
type ManufacturerClassifier struct {
	FilenamePatterns []*regexp.Regexp
	ContentPatterns  []*regexp.Regexp
	ModelSeries      []*regexp.Regexp
}

// DocumentTypeClassifier holds patterns identifying one document type.
type DocumentTypeClassifier struct {
	FilenameKeywords []string
	Keywords         []string
	ContentPatterns  []*regexp.Regexp
}

// SeriesClassifier maps a model-series pattern to a manufacturer.
type SeriesClassifier struct {
	Pattern      *regexp.Regexp
	Manufacturer string
	SeriesName   string
}

// Snapshot is one immutable, fully validated generation of all rule sets.
type Snapshot struct {
	Generation  uint64
	ErrorCodes  map[string]*ErrorCodeRules
	Versions    *VersionRules
	Placeholder map[string]*PlaceholderRules
	Chunking    *ChunkRules
	Classifier  *ClassifierRules
}

// ManufacturerCodes returns error-code rules for a manufacturer, or nil.
func (s *Snapshot) ManufacturerCodes(manufacturer string) *ErrorCodeRules {
	return s.ErrorCodes[manufacturer]
}

// PlaceholderFor returns model-placeholder rules for a manufacturer, or nil.
func (s *Snapshot) PlaceholderFor(manufacturer string) *PlaceholderRules {
	return s.Placeholder[manufacturer]
}

// StrategyFor resolves the chunking strategy for a document type and
// manufacturer. Document-type overrides win over manufacturer size
// multipliers, which win over defaults.
func (s *Snapshot) StrategyFor(docType, manufacturer string) ChunkStrategy {
	if st, ok := s.Chunking.Strategies[docType]; ok {
		resolved := *st
		if resolved.MinChunkSize == 0 {
			resolved.MinChunkSize = s.Chunking.Defaults.MinChunkSize
		}
		return resolved
	}

	resolved := s.Chunking.Defaults
	if mult, ok := s.Chunking.ManufacturerMultiplier[manufacturer]; ok && mult > 0 {
		resolved.ChunkSize = int(float64(resolved.ChunkSize) * mult)
		resolved.ChunkOverlap = int(float64(resolved.ChunkOverlap) * mult)
	}
	return resolved
}
