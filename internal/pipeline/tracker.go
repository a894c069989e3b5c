package pipeline

import (
	"sync"
	"time"
)

// Pipeline stages in execution order. Stage names are part of the stored
// contract; renaming one breaks progress consumers.
const (
	StageUploadCheck        = "upload_check"
	StageUploadDocument     = "upload_document"
	StageExtractContent     = "extract_content"
	StageProcessImages      = "process_images"
	StageClassifyDocument   = "classify_document"
	StageExtractMetadata    = "extract_metadata"
	StageStoreDocument      = "store_document"
	StageProcessChunks      = "process_chunks"
	StageGenerateEmbeddings = "generate_embeddings"
	StageFinalize           = "finalize"
)

// StageOrder lists the stages in execution order.
var StageOrder = []string{
	StageUploadCheck,
	StageUploadDocument,
	StageExtractContent,
	StageProcessImages,
	StageClassifyDocument,
	StageExtractMetadata,
	StageStoreDocument,
	StageProcessChunks,
	StageGenerateEmbeddings,
	StageFinalize,
}

// Stage statuses.
const (
	StagePending   = "pending"
	StageRunning   = "running"
	StageCompleted = "completed"
	StageSkipped   = "skipped"
	StageFailed    = "failed"
)

const completedHistoryLimit = 50

// StageProgress is the state of one stage for one document.
type StageProgress struct {
	Stage      string
	Status     string
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// DocumentProgress is the tracked state of one document run.
type DocumentProgress struct {
	DocumentKey    string
	Filename       string
	Stages         []StageProgress
	OverallPercent float64
	StartedAt      time.Time
	FinishedAt     time.Time
	Failed         bool
}

// ProgressEvent is published on every stage transition.
type ProgressEvent struct {
	DocumentKey    string
	Filename       string
	Stage          string
	Status         string
	Detail         string
	OverallPercent float64
}

// Tracker tracks per-document stage progress. The overall percentage is
// monotonic for a document run, and finished documents are kept in a bounded
// history.
type Tracker struct {
	mu        sync.Mutex
	active    map[string]*DocumentProgress
	completed []*DocumentProgress
	events    chan ProgressEvent
}

// NewTracker creates a progress tracker. Events are delivered best-effort:
// a slow consumer never blocks the pipeline.
func NewTracker() *Tracker {
	return &Tracker{
		active: make(map[string]*DocumentProgress),
		events: make(chan ProgressEvent, 256),
	}
}

// Events returns the progress event stream.
func (t *Tracker) Events() <-chan ProgressEvent {
	return t.events
}

// Start registers a document run.
func (t *Tracker) Start(key, filename string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress := &DocumentProgress{
		DocumentKey: key,
		Filename:    filename,
		StartedAt:   time.Now(),
		Stages:      make([]StageProgress, len(StageOrder)),
	}
	for i, stage := range StageOrder {
		progress.Stages[i] = StageProgress{Stage: stage, Status: StagePending}
	}
	t.active[key] = progress
}

// StageStarted marks a stage as running.
func (t *Tracker) StageStarted(key, stage string) {
	t.update(key, stage, StageRunning, "")
}

// StageCompleted marks a stage as completed.
func (t *Tracker) StageCompleted(key, stage, detail string) {
	t.update(key, stage, StageCompleted, detail)
}

// StageSkipped marks a stage as skipped.
func (t *Tracker) StageSkipped(key, stage, detail string) {
	t.update(key, stage, StageSkipped, detail)
}

// StageFailed marks a stage as failed.
func (t *Tracker) StageFailed(key, stage, detail string) {
	t.update(key, stage, StageFailed, detail)
}

// EnsureFinished marks a still-running stage as completed. Stages that
// already reported a terminal status keep it.
func (t *Tracker) EnsureFinished(key, stage string) {
	t.mu.Lock()
	running := false
	if progress, ok := t.active[key]; ok {
		for i := range progress.Stages {
			if progress.Stages[i].Stage == stage && progress.Stages[i].Status == StageRunning {
				running = true
			}
		}
	}
	t.mu.Unlock()

	if running {
		t.update(key, stage, StageCompleted, "")
	}
}

// Finish moves a document run into the bounded completed history.
func (t *Tracker) Finish(key string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress, ok := t.active[key]
	if !ok {
		return
	}
	delete(t.active, key)

	progress.FinishedAt = time.Now()
	progress.Failed = failed
	if !failed {
		progress.OverallPercent = 100
	}

	t.completed = append(t.completed, progress)
	if len(t.completed) > completedHistoryLimit {
		t.completed = t.completed[len(t.completed)-completedHistoryLimit:]
	}
}

// Active returns a snapshot of in-flight document runs.
func (t *Tracker) Active() []DocumentProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]DocumentProgress, 0, len(t.active))
	for _, p := range t.active {
		out = append(out, *p)
	}
	return out
}

// Completed returns the bounded completed history, oldest first.
func (t *Tracker) Completed() []DocumentProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]DocumentProgress, len(t.completed))
	for i, p := range t.completed {
		out[i] = *p
	}
	return out
}

func (t *Tracker) update(key, stage, status, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress, ok := t.active[key]
	if !ok {
		return
	}

	done := 0
	for i := range progress.Stages {
		sp := &progress.Stages[i]
		if sp.Stage == stage {
			sp.Status = status
			sp.Detail = detail
			switch status {
			case StageRunning:
				sp.StartedAt = time.Now()
			case StageCompleted, StageSkipped, StageFailed:
				sp.FinishedAt = time.Now()
			}
		}
		if sp.Status == StageCompleted || sp.Status == StageSkipped {
			done++
		}
	}

	percent := float64(done) / float64(len(progress.Stages)) * 100
	if percent > progress.OverallPercent {
		progress.OverallPercent = percent
	}

	event := ProgressEvent{
		DocumentKey:    key,
		Filename:       progress.Filename,
		Stage:          stage,
		Status:         status,
		Detail:         detail,
		OverallPercent: progress.OverallPercent,
	}

	select {
	case t.events <- event:
	default:
	}
}
