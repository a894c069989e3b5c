package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krai-ai/krai-engine/internal/patterns"
)

func pageText(page, words int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- PAGE %d ---\n", page)
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "p%dw%02d ", page, i)
	}
	b.WriteString("\n")
	return b.String()
}

func TestGenericWindowing(t *testing.T) {
	c := New(patterns.ChunkStrategy{ChunkSize: 10, ChunkOverlap: 3, MinChunkSize: 2})

	text := pageText(1, 15) + pageText(2, 10)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, len(strings.Fields(chunk.Text)), chunk.TokenCount)
		assert.Len(t, chunk.Fingerprint, 32)
		assert.Equal(t, "generic", chunk.Strategy)
		assert.LessOrEqual(t, chunk.TokenCount, 10)
	}

	// Consecutive windows share the configured overlap.
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	assert.Equal(t, first[len(first)-3:], second[:3])

	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 2, chunks[len(chunks)-1].PageEnd)
}

func TestBulletinSplitsOnCaseHeadings(t *testing.T) {
	c := New(patterns.ChunkStrategy{
		Method:       "technical_bulletin",
		SplitRegex:   regexp.MustCompile(`\nCase\d+:`),
		ChunkSize:    100,
		ChunkOverlap: 10,
		MinChunkSize: 3,
	})

	text := "--- PAGE 1 ---\nIntro text about affected models here\n" +
		"Case1: first issue description words words words\n" +
		"--- PAGE 2 ---\nCase2: second issue description words words words\n"

	chunks := c.Split(text)
	require.Len(t, chunks, 3)

	assert.True(t, strings.HasPrefix(chunks[0].Text, "Intro"))
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Case1:"))
	assert.True(t, strings.HasPrefix(chunks[2].Text, "Case2:"))

	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[1].PageEnd)
	assert.Equal(t, 2, chunks[2].PageStart)

	for _, chunk := range chunks {
		assert.Equal(t, "technical_bulletin", chunk.Strategy)
	}
}

func TestTrailingFragmentMerged(t *testing.T) {
	c := New(patterns.ChunkStrategy{ChunkSize: 10, ChunkOverlap: 0, MinChunkSize: 5})

	words := make([]string, 12)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	chunks := c.Split(strings.Join(words, " "))

	// The two-word tail folds into the first window.
	require.Len(t, chunks, 1)
	assert.Equal(t, 12, chunks[0].TokenCount)
}

func TestEmptyTextYieldsNoChunks(t *testing.T) {
	c := New(patterns.ChunkStrategy{ChunkSize: 10})
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("--- PAGE 1 ---\n   \n"))
}

func TestUnmarkedTextDefaultsToPageOne(t *testing.T) {
	c := New(patterns.ChunkStrategy{ChunkSize: 100, MinChunkSize: 1})

	chunks := c.Split("plain text without any markers")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
}

func TestNewRepairsInvalidStrategy(t *testing.T) {
	c := New(patterns.ChunkStrategy{ChunkSize: 0, ChunkOverlap: -1, MinChunkSize: 0})
	assert.Equal(t, 1000, c.strategy.ChunkSize)
	assert.Equal(t, 100, c.strategy.ChunkOverlap)
	assert.Equal(t, 50, c.strategy.MinChunkSize)
}

func TestFingerprintsDifferAcrossChunks(t *testing.T) {
	c := New(patterns.ChunkStrategy{ChunkSize: 5, ChunkOverlap: 0, MinChunkSize: 1})

	chunks := c.Split("alpha beta gamma delta epsilon zeta eta theta iota kappa")
	require.Len(t, chunks, 2)
	assert.NotEqual(t, chunks[0].Fingerprint, chunks[1].Fingerprint)
}
