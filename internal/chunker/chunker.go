// Package chunker splits extracted document text into indexed, fingerprinted
// chunks using document-type specific strategies.
package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/krai-ai/krai-engine/internal/patterns"
)

// Chunk is one contiguous slice of document text.
type Chunk struct {
	Index       int
	Text        string
	TokenCount  int
	Fingerprint string
	PageStart   int
	PageEnd     int
	Strategy    string
}

var pageMarkerRe = regexp.MustCompile(`--- PAGE (\d+) ---\n`)

// pageSpan maps a byte range of the joined text to a page number.
type pageSpan struct {
	start int
	page  int
}

// Chunker applies a resolved chunking strategy.
type Chunker struct {
	strategy patterns.ChunkStrategy
}

// New creates a chunker for a resolved strategy.
func New(strategy patterns.ChunkStrategy) *Chunker {
	if strategy.ChunkSize <= 0 {
		strategy.ChunkSize = 1000
	}
	if strategy.ChunkOverlap < 0 || strategy.ChunkOverlap >= strategy.ChunkSize {
		strategy.ChunkOverlap = strategy.ChunkSize / 10
	}
	if strategy.MinChunkSize <= 0 {
		strategy.MinChunkSize = 50
	}
	return &Chunker{strategy: strategy}
}

// Split chunks page-marked document text. Chunk indexes are contiguous from
// zero and every chunk carries its page span.
func (c *Chunker) Split(text string) []Chunk {
	body, spans := stripPageMarkers(text)
	if strings.TrimSpace(body) == "" {
		return nil
	}

	var sections []section
	switch c.strategy.Method {
	case "service_manual", "technical_bulletin":
		sections = splitSections(body, c.strategy.SplitRegex)
	default:
		sections = []section{{start: 0, text: body}}
	}

	var chunks []Chunk
	for _, sec := range sections {
		pageStart := pageAt(spans, sec.start)
		pageEnd := pageAt(spans, sec.start+len(sec.text)-1)
		chunks = append(chunks, c.window(sec.text, pageStart, pageEnd)...)
	}

	// Merge a trailing fragment below the minimum into its predecessor.
	chunks = c.mergeSmall(chunks)

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].TokenCount = len(strings.Fields(chunks[i].Text))
		sum := md5.Sum([]byte(chunks[i].Text))
		chunks[i].Fingerprint = hex.EncodeToString(sum[:])
		chunks[i].Strategy = c.strategy.Method
		if chunks[i].Strategy == "" {
			chunks[i].Strategy = "generic"
		}
	}
	return chunks
}

type section struct {
	start int
	text  string
}

// stripPageMarkers removes page markers and records which byte ranges of the
// remaining text belong to which page.
func stripPageMarkers(text string) (string, []pageSpan) {
	matches := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, []pageSpan{{start: 0, page: 1}}
	}

	var b strings.Builder
	var spans []pageSpan

	for i, m := range matches {
		page := 1
		if p := text[m[2]:m[3]]; p != "" {
			page = atoiSafe(p)
		}
		spans = append(spans, pageSpan{start: b.Len(), page: page})

		sectionEnd := len(text)
		if i+1 < len(matches) {
			sectionEnd = matches[i+1][0]
		}
		b.WriteString(text[m[1]:sectionEnd])
	}

	return b.String(), spans
}

func pageAt(spans []pageSpan, offset int) int {
	if offset < 0 {
		offset = 0
	}
	idx := sort.Search(len(spans), func(i int) bool {
		return spans[i].start > offset
	})
	if idx == 0 {
		return spans[0].page
	}
	return spans[idx-1].page
}

// splitSections cuts text before each boundary match. The boundary regex
// matches a newline followed by a section heading; the newline stays with
// the preceding section.
func splitSections(text string, boundary *regexp.Regexp) []section {
	if boundary == nil {
		return []section{{start: 0, text: text}}
	}

	matches := boundary.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []section{{start: 0, text: text}}
	}

	var sections []section
	prev := 0
	for _, m := range matches {
		cut := m[0] + 1 // keep the newline with the previous section
		if cut > prev {
			sections = append(sections, section{start: prev, text: text[prev:cut]})
		}
		prev = cut
	}
	if prev < len(text) {
		sections = append(sections, section{start: prev, text: text[prev:]})
	}
	return sections
}

// window slices text into word windows with overlap.
func (c *Chunker) window(text string, pageStart, pageEnd int) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	size := c.strategy.ChunkSize
	overlap := c.strategy.ChunkOverlap
	step := size - overlap

	var chunks []Chunk
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Text:      strings.Join(words[start:end], " "),
			PageStart: pageStart,
			PageEnd:   pageEnd,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// mergeSmall folds chunks below the minimum size into their predecessor.
func (c *Chunker) mergeSmall(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	merged := chunks[:1]
	for _, chunk := range chunks[1:] {
		if len(strings.Fields(chunk.Text)) < c.strategy.MinChunkSize {
			last := &merged[len(merged)-1]
			last.Text = last.Text + "\n" + chunk.Text
			if chunk.PageEnd > last.PageEnd {
				last.PageEnd = chunk.PageEnd
			}
			continue
		}
		merged = append(merged, chunk)
	}
	return merged
}

func atoiSafe(s string) int {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return n
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
