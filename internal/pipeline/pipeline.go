// Package pipeline orchestrates document ingestion: dedup, upload, content
// extraction, classification, metadata extraction, chunking, embedding, and
// persistence.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krai-ai/krai-engine/internal/cache"
	"github.com/krai-ai/krai-engine/internal/chunker"
	"github.com/krai-ai/krai-engine/internal/classify"
	"github.com/krai-ai/krai-engine/internal/config"
	"github.com/krai-ai/krai-engine/internal/extract"
	"github.com/krai-ai/krai-engine/internal/modelclient"
	"github.com/krai-ai/krai-engine/internal/objectstore"
	"github.com/krai-ai/krai-engine/internal/observability"
	"github.com/krai-ai/krai-engine/internal/patterns"
	"github.com/krai-ai/krai-engine/internal/pdfreader"
	"github.com/krai-ai/krai-engine/internal/storage"
)

// visionPrompt is sent with every document image.
const visionPrompt = "Analyze this image from a technical service document for " +
	"printing equipment. Describe what it shows: diagrams, part locations, " +
	"error displays, or procedures. Be specific and concise."

// Store is the persistence surface the pipeline depends on.
type Store interface {
	FindDocumentByHash(ctx context.Context, fileHash string) (*storage.Document, error)
	CreateDocument(ctx context.Context, doc *storage.Document) error
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string) error
	SetDocumentMetadata(ctx context.Context, id uuid.UUID, manufacturer, docType string, confidence float64, version string, models []string) error
	SaveChunksAndEmbeddings(ctx context.Context, chunks []*storage.Chunk, embeddings []*storage.Embedding) error
	CountChunks(ctx context.Context, documentID uuid.UUID) (int, error)
	CountEmbeddings(ctx context.Context, documentID uuid.UUID, modelName string) (int, error)
	CreateImage(ctx context.Context, img *storage.Image) error
	ImageExistsByHash(ctx context.Context, documentID uuid.UUID, hash string) (bool, error)
	GetOrCreateManufacturer(ctx context.Context, name string) (*storage.Manufacturer, error)
	GetOrCreateProduct(ctx context.Context, manufacturerID uuid.UUID, model, seriesName string) (*storage.Product, error)
	CreateErrorCodes(ctx context.Context, codes []*storage.ErrorCodeRecord) error
}

// DocumentReader is the extraction surface over an open document.
type DocumentReader interface {
	Metadata() pdfreader.Metadata
	ExtractText(ctx context.Context) ([]pdfreader.PageText, string, error)
	ExtractImages(ctx context.Context) ([]pdfreader.PageImage, error)
	Close() error
}

// ReaderFactory opens a DocumentReader over raw bytes.
type ReaderFactory func(data []byte) (DocumentReader, error)

// DefaultReaderFactory opens PDFs with the configured image filters.
func DefaultReaderFactory(cfg *config.Config, logger *observability.Logger) ReaderFactory {
	return func(data []byte) (DocumentReader, error) {
		return pdfreader.Open(data, pdfreader.Options{
			MinImageDimension: cfg.Processing.MinImageDimension,
			MinImageBytes:     cfg.Processing.MinImageBytes,
			Logger:            logger,
		})
	}
}

// Request is one document to process.
type Request struct {
	Filename string
	Data     []byte
}

// Stats aggregates counts for one document run.
type Stats struct {
	Pages              int
	Chunks             int
	Images             int
	Embeddings         int
	DegradedEmbeddings int
	ErrorCodes         int
	Parts              int
	Models             int
}

// Result is the outcome of one document run.
type Result struct {
	DocumentID         uuid.UUID
	Duplicate          bool
	EmbeddingsSkipped  bool
	ExistingEmbeddings int
	Manufacturer       string
	DocumentType       string
	Confidence         float64
	Version            string
	Models             []string
	Stats              Stats
	Duration           time.Duration
}

// Deps holds pipeline dependencies.
type Deps struct {
	Logger   *observability.Logger
	Config   *config.Config
	Patterns *patterns.Store
	Store    Store
	Uploader objectstore.Uploader
	Embedder modelclient.Embedder
	Runner   modelclient.ModelRunner
	Cache    cache.Client
	Reader   ReaderFactory
	Tracker  *Tracker
}

// Pipeline drives the processing stages for documents.
type Pipeline struct {
	logger    *observability.Logger
	cfg       *config.Config
	patterns  *patterns.Store
	store     Store
	uploader  objectstore.Uploader
	embedder  modelclient.Embedder
	runner    modelclient.ModelRunner
	cache     cache.Client
	newReader ReaderFactory
	tracker   *Tracker
	features  Features
	docSem    chan struct{}
}

// New creates a pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Patterns == nil {
		return nil, fmt.Errorf("pattern store is required")
	}
	if deps.Logger == nil {
		deps.Logger = observability.Nop()
	}
	if deps.Reader == nil {
		deps.Reader = DefaultReaderFactory(deps.Config, deps.Logger)
	}
	if deps.Tracker == nil {
		deps.Tracker = NewTracker()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryClient(deps.Config.Cache.MaxEntries)
	}

	return &Pipeline{
		logger:    deps.Logger,
		cfg:       deps.Config,
		patterns:  deps.Patterns,
		store:     deps.Store,
		uploader:  deps.Uploader,
		embedder:  deps.Embedder,
		runner:    deps.Runner,
		cache:     deps.Cache,
		newReader: deps.Reader,
		tracker:   deps.Tracker,
		features:  FeaturesFor(deps.Config.Processing.Mode),
		docSem:    make(chan struct{}, deps.Config.Processing.MaxConcurrentDocuments),
	}, nil
}

// Tracker returns the progress tracker.
func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

// ProcessBatch runs documents under the configured document concurrency
// limit and returns results in input order.
func (p *Pipeline) ProcessBatch(ctx context.Context, reqs []Request) ([]*Result, []error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		select {
		case p.docSem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			defer func() { <-p.docSem }()
			results[i], errs[i] = p.Process(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return results, errs
}

// run executes one stage under the stage timeout with progress tracking.
func (p *Pipeline) run(ctx context.Context, key, stage string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.tracker.StageStarted(key, stage)

	stageCtx := ctx
	if p.cfg.Processing.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.cfg.Processing.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := fn(stageCtx); err != nil {
		p.tracker.StageFailed(key, stage, err.Error())
		return fmt.Errorf("%s: %w", stage, err)
	}
	p.tracker.EnsureFinished(key, stage)

	p.logger.Debug().
		Str("stage", stage).
		Dur("duration", time.Since(start)).
		Msg("Stage completed")
	return nil
}

// Process runs a single document through all enabled stages.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	key := uuid.NewString()
	logger := p.logger.With().Str("filename", req.Filename).Logger()

	p.tracker.Start(key, req.Filename)
	result := &Result{}
	failed := true
	defer func() { p.tracker.Finish(key, failed) }()

	logger.Info().
		Int("size_bytes", len(req.Data)).
		Str("mode", string(p.cfg.Processing.Mode)).
		Msg("Starting document processing")

	// Step 1: dedup by content hash.
	sum := sha256.Sum256(req.Data)
	fileHash := hex.EncodeToString(sum[:])

	var existing *storage.Document
	if err := p.run(ctx, key, StageUploadCheck, func(ctx context.Context) error {
		doc, err := p.store.FindDocumentByHash(ctx, fileHash)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		existing = doc
		return nil
	}); err != nil {
		return nil, err
	}

	if existing != nil {
		p.tracker.StageSkipped(key, StageFinalize, "duplicate")
		logger.Info().
			Str("document_id", existing.ID.String()).
			Msg("Duplicate document, skipping")
		failed = false
		result.DocumentID = existing.ID
		result.Duplicate = true
		result.Duration = time.Since(start)
		return result, nil
	}

	// Open once; the content and image stages share the reader.
	reader, err := p.newReader(req.Data)
	if err != nil {
		p.tracker.StageFailed(key, StageExtractContent, err.Error())
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer reader.Close()

	meta := reader.Metadata()
	result.Stats.Pages = meta.PageCount

	doc := &storage.Document{
		Filename:         req.Filename,
		FileHash:         fileHash,
		FileSize:         int64(len(req.Data)),
		PageCount:        meta.PageCount,
		Manufacturer:     "unknown",
		DocumentType:     "unknown",
		ProcessingStatus: storage.StatusProcessing,
	}

	// Step 2: upload the original and create the document row.
	if err := p.run(ctx, key, StageUploadDocument, func(ctx context.Context) error {
		if p.features.UploadDocument && p.uploader != nil {
			objectKey := objectstore.ObjectKey(req.Data, req.Filename)
			url, existed, err := p.uploader.Upload(ctx, p.cfg.Storage.AssetsBucket, objectKey, req.Data, "application/pdf")
			if err != nil {
				return err
			}
			doc.StorageURL = url
			if existed {
				logger.Debug().Str("object_key", objectKey).Msg("Original already stored")
			}
		}
		return p.store.CreateDocument(ctx, doc)
	}); err != nil {
		return nil, err
	}
	result.DocumentID = doc.ID

	// Failure from here on marks the document row failed.
	defer func() {
		if failed {
			statusCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := p.store.UpdateDocumentStatus(statusCtx, doc.ID, storage.StatusFailed); err != nil {
				logger.Warn().Err(err).Msg("Failed to mark document failed")
			}
		}
	}()

	// Step 3: extract text.
	var fullText string
	if err := p.run(ctx, key, StageExtractContent, func(ctx context.Context) error {
		if !p.features.ExtractText {
			p.tracker.StageSkipped(key, StageExtractContent, "disabled by mode")
			return nil
		}
		_, joined, err := reader.ExtractText(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(joined) == "" {
			return fmt.Errorf("document contains no extractable text")
		}
		fullText = joined
		p.tracker.StageCompleted(key, StageExtractContent, fmt.Sprintf("%d pages", meta.PageCount))
		return nil
	}); err != nil {
		return nil, err
	}

	// Step 4: images and vision analysis.
	if err := p.run(ctx, key, StageProcessImages, func(ctx context.Context) error {
		if !p.features.ProcessImages {
			p.tracker.StageSkipped(key, StageProcessImages, "disabled by mode")
			return nil
		}
		count, err := p.processImages(ctx, logger, doc.ID, reader)
		if err != nil {
			return err
		}
		result.Stats.Images = count
		p.tracker.StageCompleted(key, StageProcessImages, fmt.Sprintf("%d images", count))
		return nil
	}); err != nil {
		return nil, err
	}

	// Step 5: classification.
	snap := p.patterns.Snapshot()
	classification := classify.Result{Manufacturer: "unknown", DocumentType: "unknown"}
	if err := p.run(ctx, key, StageClassifyDocument, func(ctx context.Context) error {
		if !p.features.Classify {
			p.tracker.StageSkipped(key, StageClassifyDocument, "disabled by mode")
			return nil
		}
		head := contentHead(fullText, p.cfg.Processing.ContentHeadChars)
		classification = classify.New(snap).Classify(req.Filename, head)
		p.tracker.StageCompleted(key, StageClassifyDocument,
			fmt.Sprintf("%s/%s", classification.Manufacturer, classification.DocumentType))
		return nil
	}); err != nil {
		return nil, err
	}

	// Step 6: metadata extraction.
	var (
		version    extract.VersionResult
		hasVersion bool
		models     []extract.ModelResult
		codes      []extract.CodeResult
		parts      []extract.PartResult
	)
	if err := p.run(ctx, key, StageExtractMetadata, func(ctx context.Context) error {
		if !p.features.ExtractMetadata {
			p.tracker.StageSkipped(key, StageExtractMetadata, "disabled by mode")
			return nil
		}
		version, hasVersion = extract.NewVersionExtractor(snap).Extract(fullText, classification.Manufacturer)
		models = extract.NewModelExtractor(snap).Extract(fullText, classification.Manufacturer)
		codeExtractor := extract.NewCodeExtractor(snap)
		codes = codeExtractor.ErrorCodes(fullText, classification.Manufacturer)
		parts = codeExtractor.PartNumbers(fullText, classification.Manufacturer)

		classification.ApplyMetadataBoost(len(models) > 0, hasVersion)

		result.Stats.Models = len(models)
		result.Stats.ErrorCodes = len(codes)
		result.Stats.Parts = len(parts)
		p.tracker.StageCompleted(key, StageExtractMetadata,
			fmt.Sprintf("%d models, %d codes, %d parts", len(models), len(codes), len(parts)))
		return nil
	}); err != nil {
		return nil, err
	}

	result.Manufacturer = classification.Manufacturer
	result.DocumentType = classification.DocumentType
	result.Confidence = classification.HybridConfidence
	if hasVersion {
		result.Version = version.Version
	}
	for _, m := range models {
		result.Models = append(result.Models, m.Model)
	}

	// Step 7: persist classification, manufacturer, products, error codes.
	if err := p.run(ctx, key, StageStoreDocument, func(ctx context.Context) error {
		if !p.features.StoreDocument {
			p.tracker.StageSkipped(key, StageStoreDocument, "disabled by mode")
			return nil
		}
		if err := p.store.SetDocumentMetadata(ctx, doc.ID,
			classification.Manufacturer, classification.DocumentType,
			classification.HybridConfidence, result.Version, result.Models); err != nil {
			return err
		}
		if err := p.storeTechnicalInfo(ctx, doc.ID, classification, models, codes); err != nil {
			return err
		}
		p.tracker.StageCompleted(key, StageStoreDocument, "")
		return nil
	}); err != nil {
		return nil, err
	}

	// Steps 8-9: chunking and embeddings.
	if err := p.processChunks(ctx, key, logger, doc.ID, fullText, classification, result); err != nil {
		return nil, err
	}

	// Step 10: finalize.
	if err := p.run(ctx, key, StageFinalize, func(ctx context.Context) error {
		if err := p.store.UpdateDocumentStatus(ctx, doc.ID, storage.StatusCompleted); err != nil {
			return err
		}
		p.tracker.StageCompleted(key, StageFinalize, "")
		return nil
	}); err != nil {
		return nil, err
	}

	failed = false
	result.Duration = time.Since(start)

	logger.Info().
		Str("document_id", doc.ID.String()).
		Str("manufacturer", result.Manufacturer).
		Str("document_type", result.DocumentType).
		Int("chunks", result.Stats.Chunks).
		Int("embeddings", result.Stats.Embeddings).
		Int("degraded_embeddings", result.Stats.DegradedEmbeddings).
		Dur("duration", result.Duration).
		Msg("Document processing completed")

	return result, nil
}

// processImages uploads page images and runs vision analysis. Images whose
// hash is already stored for this document are skipped, so re-runs do not
// duplicate rows the reader's in-memory dedup cannot see.
func (p *Pipeline) processImages(ctx context.Context, logger *observability.Logger, documentID uuid.UUID, reader DocumentReader) (int, error) {
	images, err := reader.ExtractImages(ctx)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		exists, err := p.store.ImageExistsByHash(ctx, documentID, img.Hash)
		if err != nil {
			return stored, fmt.Errorf("check image page %d: %w", img.PageNumber, err)
		}
		if exists {
			logger.Debug().Int("page", img.PageNumber).Str("hash", img.Hash).Msg("Image already stored")
			continue
		}

		description := ""
		if p.features.VisionAnalysis && p.runner != nil {
			description, err = p.runner.AnalyzeImage(ctx, visionPrompt, img.Data)
			if err != nil {
				// The image row is still worth keeping without the analysis.
				logger.Warn().Err(err).Int("page", img.PageNumber).Msg("Vision analysis failed")
				description = ""
			}
		}

		url := ""
		if p.uploader != nil {
			key := img.Hash + ".png"
			url, _, err = p.uploader.Upload(ctx, p.cfg.Storage.ImagesBucket, key, img.Data, "image/png")
			if err != nil {
				return stored, fmt.Errorf("upload image page %d: %w", img.PageNumber, err)
			}
		}

		if err := p.store.CreateImage(ctx, &storage.Image{
			DocumentID:    documentID,
			PageNumber:    img.PageNumber,
			ImageIndex:    img.Index,
			StorageURL:    url,
			Hash:          img.Hash,
			Width:         img.Width,
			Height:        img.Height,
			Colorspace:    img.Colorspace,
			FileSize:      int64(len(img.Data)),
			AIDescription: description,
		}); err != nil {
			return stored, fmt.Errorf("store image page %d: %w", img.PageNumber, err)
		}
		stored++
	}

	return stored, nil
}

// storeTechnicalInfo persists the manufacturer, product rows for each
// extracted model, and the extracted error codes.
func (p *Pipeline) storeTechnicalInfo(ctx context.Context, documentID uuid.UUID, classification classify.Result, models []extract.ModelResult, codes []extract.CodeResult) error {
	if classification.Manufacturer == "unknown" || classification.Manufacturer == "" {
		return nil
	}

	mfr, err := p.store.GetOrCreateManufacturer(ctx, classification.Manufacturer)
	if err != nil {
		return fmt.Errorf("resolve manufacturer: %w", err)
	}

	for _, m := range models {
		if _, err := p.store.GetOrCreateProduct(ctx, mfr.ID, m.Model, m.SeriesName); err != nil {
			return fmt.Errorf("resolve product %s: %w", m.Model, err)
		}
	}

	if len(codes) > 0 {
		records := make([]*storage.ErrorCodeRecord, len(codes))
		for i, c := range codes {
			records[i] = &storage.ErrorCodeRecord{
				DocumentID:  documentID,
				Code:        c.Code,
				Description: c.Description,
				Category:    c.Category,
			}
		}
		if err := p.store.CreateErrorCodes(ctx, records); err != nil {
			return fmt.Errorf("store error codes: %w", err)
		}
	}

	return nil
}

type chunkEmbedding struct {
	index    int
	vector   []float64
	degraded bool
}

// processChunks runs the process_chunks and generate_embeddings stages:
// chunking, the skip-if-complete check, embedding fan-out with an ordered
// gather, and one transactional write for the whole batch.
func (p *Pipeline) processChunks(ctx context.Context, key string, logger *observability.Logger, documentID uuid.UUID, fullText string, classification classify.Result, result *Result) error {
	var chunks []chunker.Chunk

	if err := p.run(ctx, key, StageProcessChunks, func(ctx context.Context) error {
		if !p.features.Chunking {
			p.tracker.StageSkipped(key, StageProcessChunks, "disabled by mode")
			return nil
		}
		snap := p.patterns.Snapshot()
		strategy := snap.StrategyFor(classification.DocumentType, classification.Manufacturer)
		chunks = chunker.New(strategy).Split(fullText)
		result.Stats.Chunks = len(chunks)
		p.tracker.StageCompleted(key, StageProcessChunks, fmt.Sprintf("%d chunks", len(chunks)))
		return nil
	}); err != nil {
		return err
	}

	return p.run(ctx, key, StageGenerateEmbeddings, func(ctx context.Context) error {
		if len(chunks) == 0 {
			p.tracker.StageSkipped(key, StageGenerateEmbeddings, "no chunks")
			return nil
		}

		// A complete embedding set from an earlier run makes regeneration
		// pointless.
		existingChunks, err := p.store.CountChunks(ctx, documentID)
		if err != nil {
			return err
		}
		if existingChunks > 0 && p.embedder != nil {
			existingEmbeddings, err := p.store.CountEmbeddings(ctx, documentID, p.embedder.Model())
			if err != nil {
				return err
			}
			if existingEmbeddings == existingChunks {
				result.EmbeddingsSkipped = true
				result.ExistingEmbeddings = existingEmbeddings
				p.tracker.StageSkipped(key, StageGenerateEmbeddings,
					fmt.Sprintf("%d embeddings already present", existingEmbeddings))
				return nil
			}
		}

		rows := make([]*storage.Chunk, len(chunks))
		for i, c := range chunks {
			rows[i] = &storage.Chunk{
				ID:          uuid.New(),
				DocumentID:  documentID,
				ChunkIndex:  c.Index,
				Text:        c.Text,
				TokenCount:  c.TokenCount,
				Fingerprint: c.Fingerprint,
				PageStart:   c.PageStart,
				PageEnd:     c.PageEnd,
				Strategy:    c.Strategy,
			}
		}

		var embeddings []*storage.Embedding
		if p.features.Embeddings && p.embedder != nil {
			results, err := p.embedChunks(ctx, logger, chunks)
			if err != nil {
				return err
			}
			// Order barrier: workers finish out of order, rows are written
			// sorted by chunk index.
			sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
			embeddings = make([]*storage.Embedding, len(results))
			for i, r := range results {
				embeddings[i] = &storage.Embedding{
					ChunkID:   rows[r.index].ID,
					Vector:    r.vector,
					ModelName: p.embedder.Model(),
					Degraded:  r.degraded,
				}
				if r.degraded {
					result.Stats.DegradedEmbeddings++
				}
			}
			result.Stats.Embeddings = len(embeddings)
		}

		if err := p.store.SaveChunksAndEmbeddings(ctx, rows, embeddings); err != nil {
			return err
		}

		detail := fmt.Sprintf("%d embeddings", result.Stats.Embeddings)
		if result.Stats.DegradedEmbeddings > 0 {
			detail += fmt.Sprintf(" (%d degraded)", result.Stats.DegradedEmbeddings)
		}
		p.tracker.StageCompleted(key, StageGenerateEmbeddings, detail)
		return nil
	})
}

// embedChunks fans chunk embedding out over the configured worker count.
// Model failures degrade to zero vectors; only cancellation aborts the run.
func (p *Pipeline) embedChunks(ctx context.Context, logger *observability.Logger, chunks []chunker.Chunk) ([]chunkEmbedding, error) {
	workers := p.cfg.Processing.MaxConcurrentChunks
	if workers > len(chunks) {
		workers = len(chunks)
	}

	jobs := make(chan int)
	out := make(chan chunkEmbedding, len(chunks))
	errCh := make(chan error, workers)
	dimension := p.embedder.Dimension()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				vector, degraded, err := p.embedOne(ctx, chunks[idx])
				if err != nil {
					select {
					case errCh <- fmt.Errorf("chunk %d: %w", idx, err):
					default:
					}
					return
				}
				if degraded {
					logger.Warn().Int("chunk_index", idx).Msg("Embedding degraded to zero vector")
					vector = make([]float64, dimension)
				}
				out <- chunkEmbedding{index: idx, vector: vector, degraded: degraded}
			}
		}()
	}

	feedErr := func() error {
		for i := range chunks {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			case err := <-errCh:
				return err
			}
		}
		return nil
	}()
	close(jobs)
	wg.Wait()
	close(out)

	if feedErr != nil {
		return nil, feedErr
	}
	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	results := make([]chunkEmbedding, 0, len(chunks))
	for r := range out {
		results = append(results, r)
	}
	if len(results) != len(chunks) {
		return nil, fmt.Errorf("embedding workers produced %d of %d results", len(results), len(chunks))
	}
	return results, nil
}

// embedOne resolves a chunk embedding from cache or the model. Any model
// error, permanent or retry-exhausted, reports degraded=true instead of
// failing the document; only a cancelled or expired context propagates.
func (p *Pipeline) embedOne(ctx context.Context, chunk chunker.Chunk) ([]float64, bool, error) {
	cacheKey := cache.EmbeddingKey(chunk.Fingerprint, p.embedder.Model())
	if cached, err := p.cache.Get(ctx, cacheKey); err == nil {
		var vector []float64
		if err := json.Unmarshal(cached, &vector); err == nil && len(vector) > 0 {
			return vector, false, nil
		}
	}

	vector, err := p.embedder.EmbedSingle(ctx, chunk.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, nil
	}

	if data, err := json.Marshal(vector); err == nil {
		_ = p.cache.Set(ctx, cacheKey, data, p.cfg.Cache.TTL)
	}
	return vector, false, nil
}

func contentHead(text string, limit int) string {
	if limit <= 0 {
		limit = 10000
	}
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
