package patterns

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Rule file names expected under the patterns directory.
const (
	ErrorCodeFile      = "error_code_patterns.json"
	VersionFile        = "version_patterns.json"
	PlaceholderFile    = "model_placeholder_patterns.json"
	ChunkFile          = "chunk_settings.json"
	ClassificationFile = "classification_patterns.json"
)

type errorCodeFileJSON struct {
	Version       string                       `json:"version"`
	LastUpdated   string                       `json:"last_updated"`
	Manufacturers map[string]errorCodeMfrJSON  `json:"manufacturers"`
}

type errorCodeMfrJSON struct {
	Patterns            []string                   `json:"patterns"`
	ValidationRegex     string                     `json:"validation_regex"`
	DescriptionPatterns []string                   `json:"description_patterns"`
	Examples            map[string]codeExampleJSON `json:"examples"`
	PartNumberPatterns  []string                   `json:"part_number_patterns"`
	PartExamples        map[string]string          `json:"part_examples"`
}

type codeExampleJSON struct {
	Description string `json:"description"`
	Category    string `json:"category"`
}

type versionFileJSON struct {
	VersionPatterns map[string]versionCategoryJSON      `json:"version_patterns"`
	SearchOrder     []string                            `json:"search_order"`
	Validation      versionValidationJSON               `json:"validation"`
	Manufacturer    map[string]versionMfrJSON           `json:"manufacturer_specific"`
}

type versionCategoryJSON struct {
	Patterns     []string `json:"patterns"`
	Description  string   `json:"description"`
	OutputFormat string   `json:"output_format"`
}

type versionValidationJSON struct {
	MaxLength         int      `json:"max_length"`
	AllowedChars      string   `json:"allowed_chars"`
	ForbiddenPatterns []string `json:"forbidden_patterns"`
}

type versionMfrJSON struct {
	PreferredPatterns []string `json:"preferred_patterns"`
	DateFormat        string   `json:"date_format"`
}

type placeholderFileJSON struct {
	Manufacturers map[string]placeholderMfrJSON `json:"manufacturers"`
}

type placeholderMfrJSON struct {
	ExactPatterns []string              `json:"exact_patterns"`
	Series        map[string]seriesJSON `json:"series"`
	KnownModels   []string              `json:"known_models"`
}

type seriesJSON struct {
	Patterns     []string `json:"patterns"`
	ActualModels []string `json:"actual_models"`
	SeriesName   string   `json:"series_name"`
	Confidence   float64  `json:"confidence"`
}

type chunkFileJSON struct {
	Defaults              chunkDefaultsJSON             `json:"defaults"`
	Strategies            map[string]chunkStrategyJSON  `json:"strategies"`
	ManufacturerOverrides map[string]chunkOverrideJSON  `json:"manufacturer_overrides"`
}

type chunkDefaultsJSON struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	MinChunkSize int `json:"min_chunk_size"`
}

type chunkStrategyJSON struct {
	Method       string `json:"method"`
	SplitRegex   string `json:"split_regex"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type chunkOverrideJSON struct {
	ChunkSizeMultiplier float64 `json:"chunk_size_multiplier"`
}

type classificationFileJSON struct {
	Manufacturers map[string]classifierMfrJSON     `json:"manufacturers"`
	DocumentTypes map[string]classifierDocTypeJSON `json:"document_types"`
	Series        []classifierSeriesJSON           `json:"series"`
}

type classifierMfrJSON struct {
	FilenamePatterns []string `json:"filename_patterns"`
	ContentPatterns  []string `json:"content_patterns"`
	ModelSeries      []string `json:"model_series"`
}

type classifierDocTypeJSON struct {
	FilenameKeywords []string `json:"filename_keywords"`
	Keywords         []string `json:"keywords"`
	ContentPatterns  []string `json:"content_patterns"`
}

type classifierSeriesJSON struct {
	Pattern      string `json:"pattern"`
	Manufacturer string `json:"manufacturer"`
	SeriesName   string `json:"series_name"`
}

// loadSnapshot reads and compiles all rule files from dir. Any parse or
// regex compile failure aborts the whole load.
func loadSnapshot(dir string) (*Snapshot, error) {
	snap := &Snapshot{
		ErrorCodes:  make(map[string]*ErrorCodeRules),
		Placeholder: make(map[string]*PlaceholderRules),
	}

	if err := loadErrorCodes(filepath.Join(dir, ErrorCodeFile), snap); err != nil {
		return nil, err
	}
	if err := loadVersions(filepath.Join(dir, VersionFile), snap); err != nil {
		return nil, err
	}
	if err := loadPlaceholders(filepath.Join(dir, PlaceholderFile), snap); err != nil {
		return nil, err
	}
	if err := loadChunking(filepath.Join(dir, ChunkFile), snap); err != nil {
		return nil, err
	}
	if err := loadClassification(filepath.Join(dir, ClassificationFile), snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func compileAll(file, key string, raw []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: invalid pattern %q: %w", file, key, p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func loadErrorCodes(path string, snap *Snapshot) error {
	var raw errorCodeFileJSON
	if err := readJSON(path, &raw); err != nil {
		return err
	}

	for mfr, m := range raw.Manufacturers {
		rules := &ErrorCodeRules{
			Examples:             make(map[string]CodeExample, len(m.Examples)),
			DescriptionTemplates: m.DescriptionPatterns,
			PartExamples:         m.PartExamples,
		}
		for code, ex := range m.Examples {
			category := ex.Category
			if category == "" {
				category = "unknown"
			}
			rules.Examples[code] = CodeExample{Description: ex.Description, Category: category}
		}
		var err error
		if rules.Patterns, err = compileAll(ErrorCodeFile, mfr+".patterns", m.Patterns); err != nil {
			return err
		}
		if m.ValidationRegex != "" {
			if rules.ValidationRegex, err = regexp.Compile(m.ValidationRegex); err != nil {
				return fmt.Errorf("%s: %s: invalid validation_regex %q: %w", ErrorCodeFile, mfr, m.ValidationRegex, err)
			}
		}
		// Templates are compiled per code at extraction time; validate them
		// here with a placeholder binding so a bad template fails the load.
		for _, tmpl := range m.DescriptionPatterns {
			if !strings.Contains(tmpl, "{code}") {
				return fmt.Errorf("%s: %s: description pattern %q is missing the {code} placeholder", ErrorCodeFile, mfr, tmpl)
			}
			if _, err := regexp.Compile(strings.ReplaceAll(tmpl, "{code}", "0")); err != nil {
				return fmt.Errorf("%s: %s: invalid pattern %q: %w", ErrorCodeFile, mfr, tmpl, err)
			}
		}
		if rules.PartNumberPatterns, err = compileAll(ErrorCodeFile, mfr+".part_number_patterns", m.PartNumberPatterns); err != nil {
			return err
		}
		snap.ErrorCodes[mfr] = rules
	}
	return nil
}

func loadVersions(path string, snap *Snapshot) error {
	var raw versionFileJSON
	if err := readJSON(path, &raw); err != nil {
		return err
	}

	rules := &VersionRules{
		Categories:   make(map[string]*VersionCategory),
		SearchOrder:  raw.SearchOrder,
		Manufacturer: make(map[string]ManufacturerVersionPrefs),
	}

	for name, cat := range raw.VersionPatterns {
		compiled, err := compileAll(VersionFile, name, cat.Patterns)
		if err != nil {
			return err
		}
		rules.Categories[name] = &VersionCategory{
			Name:         name,
			Patterns:     compiled,
			RawPatterns:  cat.Patterns,
			Description:  cat.Description,
			OutputFormat: cat.OutputFormat,
		}
	}

	for _, name := range raw.SearchOrder {
		if _, ok := rules.Categories[name]; !ok {
			return fmt.Errorf("%s: search_order references unknown category %q", VersionFile, name)
		}
	}

	rules.Validation.MaxLength = raw.Validation.MaxLength
	if raw.Validation.AllowedChars != "" {
		re, err := regexp.Compile(raw.Validation.AllowedChars)
		if err != nil {
			return fmt.Errorf("%s: invalid allowed_chars %q: %w", VersionFile, raw.Validation.AllowedChars, err)
		}
		rules.Validation.AllowedChars = re
	}
	forbidden, err := compileAll(VersionFile, "validation.forbidden_patterns", raw.Validation.ForbiddenPatterns)
	if err != nil {
		return err
	}
	rules.Validation.ForbiddenPatterns = forbidden

	for mfr, prefs := range raw.Manufacturer {
		rules.Manufacturer[mfr] = ManufacturerVersionPrefs{
			PreferredPatterns: prefs.PreferredPatterns,
			DateFormat:        prefs.DateFormat,
		}
	}

	snap.Versions = rules
	return nil
}

func loadPlaceholders(path string, snap *Snapshot) error {
	var raw placeholderFileJSON
	if err := readJSON(path, &raw); err != nil {
		return err
	}

	for mfr, m := range raw.Manufacturers {
		rules := &PlaceholderRules{
			Series:      make(map[string]*SeriesRule),
			KnownModels: make(map[string]bool, len(m.KnownModels)),
		}
		for _, model := range m.KnownModels {
			rules.KnownModels[model] = true
		}
		var err error
		if rules.ExactPatterns, err = compileAll(PlaceholderFile, mfr+".exact_patterns", m.ExactPatterns); err != nil {
			return err
		}
		for key, s := range m.Series {
			compiled, err := compileAll(PlaceholderFile, mfr+"."+key, s.Patterns)
			if err != nil {
				return err
			}
			confidence := s.Confidence
			if confidence == 0 {
				confidence = 0.8
			}
			rules.Series[key] = &SeriesRule{
				Key:          key,
				Patterns:     compiled,
				RawPatterns:  s.Patterns,
				ActualModels: s.ActualModels,
				SeriesName:   s.SeriesName,
				Confidence:   confidence,
			}
		}
		snap.Placeholder[mfr] = rules
	}
	return nil
}

func loadChunking(path string, snap *Snapshot) error {
	var raw chunkFileJSON
	if err := readJSON(path, &raw); err != nil {
		return err
	}

	rules := &ChunkRules{
		Defaults: ChunkStrategy{
			Method:       "generic",
			ChunkSize:    raw.Defaults.ChunkSize,
			ChunkOverlap: raw.Defaults.ChunkOverlap,
			MinChunkSize: raw.Defaults.MinChunkSize,
		},
		Strategies:             make(map[string]*ChunkStrategy),
		ManufacturerMultiplier: make(map[string]float64),
	}

	if rules.Defaults.ChunkSize <= 0 {
		return fmt.Errorf("%s: defaults.chunk_size must be positive", ChunkFile)
	}
	if rules.Defaults.ChunkOverlap < 0 || rules.Defaults.ChunkOverlap >= rules.Defaults.ChunkSize {
		return fmt.Errorf("%s: defaults.chunk_overlap must be in [0, chunk_size)", ChunkFile)
	}

	for docType, s := range raw.Strategies {
		strategy := &ChunkStrategy{
			Method:       s.Method,
			ChunkSize:    s.ChunkSize,
			ChunkOverlap: s.ChunkOverlap,
		}
		if strategy.ChunkSize <= 0 {
			strategy.ChunkSize = rules.Defaults.ChunkSize
		}
		if strategy.ChunkOverlap < 0 {
			strategy.ChunkOverlap = rules.Defaults.ChunkOverlap
		}
		if s.SplitRegex != "" {
			re, err := regexp.Compile(s.SplitRegex)
			if err != nil {
				return fmt.Errorf("%s: %s: invalid split_regex %q: %w", ChunkFile, docType, s.SplitRegex, err)
			}
			strategy.SplitRegex = re
		}
		rules.Strategies[docType] = strategy
	}

	for mfr, o := range raw.ManufacturerOverrides {
		if o.ChunkSizeMultiplier <= 0 {
			return fmt.Errorf("%s: %s: chunk_size_multiplier must be positive", ChunkFile, mfr)
		}
		rules.ManufacturerMultiplier[mfr] = o.ChunkSizeMultiplier
	}

	snap.Chunking = rules
	return nil
}

func loadClassification(path string, snap *Snapshot) error {
	var raw classificationFileJSON
	if err := readJSON(path, &raw); err != nil {
		return err
	}

	rules := &ClassifierRules{
		Manufacturers: make(map[string]*ManufacturerClassifier),
		DocumentTypes: make(map[string]*DocumentTypeClassifier),
	}

	for mfr, m := range raw.Manufacturers {
		c := &ManufacturerClassifier{}
		var err error
		if c.FilenamePatterns, err = compileAll(ClassificationFile, mfr+".filename_patterns", m.FilenamePatterns); err != nil {
			return err
		}
		if c.ContentPatterns, err = compileAll(ClassificationFile, mfr+".content_patterns", m.ContentPatterns); err != nil {
			return err
		}
		if c.ModelSeries, err = compileAll(ClassificationFile, mfr+".model_series", m.ModelSeries); err != nil {
			return err
		}
		rules.Manufacturers[mfr] = c
	}

	for docType, d := range raw.DocumentTypes {
		c := &DocumentTypeClassifier{
			FilenameKeywords: d.FilenameKeywords,
			Keywords:         d.Keywords,
		}
		var err error
		if c.ContentPatterns, err = compileAll(ClassificationFile, docType+".content_patterns", d.ContentPatterns); err != nil {
			return err
		}
		rules.DocumentTypes[docType] = c
	}

	for i, s := range raw.Series {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return fmt.Errorf("%s: series[%d]: invalid pattern %q: %w", ClassificationFile, i, s.Pattern, err)
		}
		rules.Series = append(rules.Series, &SeriesClassifier{
			Pattern:      re,
			Manufacturer: s.Manufacturer,
			SeriesName:   s.SeriesName,
		})
	}

	snap.Classifier = rules
	return nil
}
