package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krai-ai/krai-engine/internal/config"
)

func TestTrackerPercentIsMonotonic(t *testing.T) {
	tr := NewTracker()
	tr.Start("doc1", "manual.pdf")

	var last float64
	for _, stage := range StageOrder {
		tr.StageStarted("doc1", stage)
		tr.StageCompleted("doc1", stage, "")

		active := tr.Active()
		require.Len(t, active, 1)
		assert.GreaterOrEqual(t, active[0].OverallPercent, last)
		last = active[0].OverallPercent
	}
	assert.InDelta(t, 100, last, 0.001)
}

func TestTrackerSkippedCountsAsProgress(t *testing.T) {
	tr := NewTracker()
	tr.Start("doc1", "manual.pdf")

	tr.StageCompleted("doc1", StageUploadCheck, "")
	tr.StageSkipped("doc1", StageProcessImages, "disabled by mode")

	active := tr.Active()
	require.Len(t, active, 1)
	assert.InDelta(t, 20, active[0].OverallPercent, 0.001)
}

func TestTrackerEnsureFinishedOnlyUpgradesRunning(t *testing.T) {
	tr := NewTracker()
	tr.Start("doc1", "manual.pdf")

	tr.StageStarted("doc1", StageUploadCheck)
	tr.EnsureFinished("doc1", StageUploadCheck)

	tr.StageStarted("doc1", StageExtractContent)
	tr.StageSkipped("doc1", StageExtractContent, "disabled by mode")
	tr.EnsureFinished("doc1", StageExtractContent)

	active := tr.Active()
	require.Len(t, active, 1)
	for _, sp := range active[0].Stages {
		switch sp.Stage {
		case StageUploadCheck:
			assert.Equal(t, StageCompleted, sp.Status)
		case StageExtractContent:
			assert.Equal(t, StageSkipped, sp.Status)
		}
	}
}

func TestTrackerFinishMovesToHistory(t *testing.T) {
	tr := NewTracker()
	tr.Start("doc1", "manual.pdf")
	tr.Finish("doc1", false)

	assert.Empty(t, tr.Active())
	completed := tr.Completed()
	require.Len(t, completed, 1)
	assert.False(t, completed[0].Failed)
	assert.InDelta(t, 100, completed[0].OverallPercent, 0.001)

	tr.Start("doc2", "other.pdf")
	tr.StageFailed("doc2", StageUploadCheck, "db down")
	tr.Finish("doc2", true)

	completed = tr.Completed()
	require.Len(t, completed, 2)
	assert.True(t, completed[1].Failed)
	assert.Less(t, completed[1].OverallPercent, 100.0)
}

func TestTrackerHistoryIsBounded(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < completedHistoryLimit+5; i++ {
		key := fmt.Sprintf("doc%d", i)
		tr.Start(key, key+".pdf")
		tr.Finish(key, false)
	}

	completed := tr.Completed()
	require.Len(t, completed, completedHistoryLimit)
	// Oldest entries were evicted.
	assert.Equal(t, "doc5", completed[0].DocumentKey)
}

func TestTrackerEventsNeverBlock(t *testing.T) {
	tr := NewTracker()
	tr.Start("doc1", "manual.pdf")

	// Nobody reads the events channel; far more transitions than its buffer.
	for i := 0; i < 600; i++ {
		tr.StageStarted("doc1", StageUploadCheck)
		tr.StageCompleted("doc1", StageUploadCheck, "")
	}

	ev := <-tr.Events()
	assert.Equal(t, "doc1", ev.DocumentKey)
	assert.Equal(t, "manual.pdf", ev.Filename)
}

func TestTrackerUnknownKeyIgnored(t *testing.T) {
	tr := NewTracker()
	tr.StageCompleted("missing", StageUploadCheck, "")
	tr.Finish("missing", false)
	assert.Empty(t, tr.Active())
	assert.Empty(t, tr.Completed())
}

func TestFeaturesForModes(t *testing.T) {
	prod := FeaturesFor(config.ModeProduction)
	assert.True(t, prod.Embeddings)
	assert.True(t, prod.VisionAnalysis)

	demo := FeaturesFor(config.ModeDemo)
	assert.True(t, demo.Chunking)
	assert.False(t, demo.Embeddings)
	assert.False(t, demo.VisionAnalysis)

	img := FeaturesFor(config.ModeImageOnly)
	assert.True(t, img.ProcessImages)
	assert.False(t, img.ExtractText)
	assert.False(t, img.Chunking)

	emb := FeaturesFor(config.ModeEmbeddingOnly)
	assert.True(t, emb.Embeddings)
	assert.False(t, emb.Classify)

	cls := FeaturesFor(config.ModeClassificationOnly)
	assert.True(t, cls.Classify)
	assert.False(t, cls.Chunking)
}
