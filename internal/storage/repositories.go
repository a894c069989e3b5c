// Package storage provides database models and repositories for the
// processing engine. Tables live in the krai_core, krai_intelligence, and
// krai_content schemas.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// TxBeginner is satisfied by *sql.DB and opens transactions for batch writes.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// DocumentRepository handles document rows.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = StatusPending
	}

	query := `
		INSERT INTO krai_core.documents (id, filename, file_hash, file_size, storage_url,
			page_count, manufacturer, document_type, confidence, version, models,
			language, processing_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.FileHash, doc.FileSize, doc.StorageURL,
		doc.PageCount, doc.Manufacturer, doc.DocumentType, doc.Confidence,
		doc.Version, pq.Array(doc.Models), doc.Language, doc.ProcessingStatus,
		doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

const documentColumns = `id, filename, file_hash, file_size, storage_url,
	page_count, manufacturer, document_type, confidence, version, models,
	language, processing_status, created_at, updated_at`

func scanDocument(row *sql.Row) (*Document, error) {
	doc := &Document{}
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.FileHash, &doc.FileSize, &doc.StorageURL,
		&doc.PageCount, &doc.Manufacturer, &doc.DocumentType, &doc.Confidence,
		&doc.Version, pq.Array(&doc.Models), &doc.Language,
		&doc.ProcessingStatus, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// FindByHash retrieves a document by its content hash. Duplicate detection
// hangs off this lookup.
func (r *DocumentRepository) FindByHash(ctx context.Context, fileHash string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM krai_core.documents WHERE file_hash = $1`
	return scanDocument(r.db.QueryRowContext(ctx, query, fileHash))
}

// UpdateStatus updates the processing status.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE krai_core.documents SET processing_status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMetadata updates classification and extraction results.
func (r *DocumentRepository) SetMetadata(ctx context.Context, id uuid.UUID, manufacturer, docType string, confidence float64, version string, models []string) error {
	query := `
		UPDATE krai_core.documents
		SET manufacturer = $2, document_type = $3, confidence = $4,
			version = $5, models = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, manufacturer, docType, confidence, version, pq.Array(models), time.Now())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChunkRepository handles chunk rows.
type ChunkRepository struct {
	db DB
}

// NewChunkRepository creates a new chunk repository.
func NewChunkRepository(db DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// CreateBatch inserts chunks in chunk_index order. Callers pass a *sql.Tx as
// db when the batch must be atomic with the embeddings.
func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*Chunk) error {
	query := `
		INSERT INTO krai_intelligence.chunks (id, document_id, chunk_index, text_chunk,
			token_count, fingerprint, page_start, page_end, strategy, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	now := time.Now()
	for _, chunk := range chunks {
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}
		chunk.CreatedAt = now
		if _, err := r.db.ExecContext(ctx, query,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Text,
			chunk.TokenCount, chunk.Fingerprint, chunk.PageStart, chunk.PageEnd,
			chunk.Strategy, chunk.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	return nil
}

// CountByDocument returns the number of chunks stored for a document.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM krai_intelligence.chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// EmbeddingRepository handles embedding rows.
type EmbeddingRepository struct {
	db DB
}

// NewEmbeddingRepository creates a new embedding repository.
func NewEmbeddingRepository(db DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// CreateBatch inserts embeddings. The vector is bound as a pgvector text
// literal.
func (r *EmbeddingRepository) CreateBatch(ctx context.Context, embeddings []*Embedding) error {
	query := `
		INSERT INTO krai_intelligence.embeddings (id, chunk_id, embedding, model_name, degraded, created_at)
		VALUES ($1, $2, $3::vector, $4, $5, $6)
	`
	now := time.Now()
	for i, emb := range embeddings {
		if emb.ID == uuid.Nil {
			emb.ID = uuid.New()
		}
		emb.CreatedAt = now
		if _, err := r.db.ExecContext(ctx, query,
			emb.ID, emb.ChunkID, VectorLiteral(emb.Vector), emb.ModelName,
			emb.Degraded, emb.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert embedding %d: %w", i, err)
		}
	}
	return nil
}

// CountByDocumentAndModel counts embeddings for a document's chunks under a
// given model. Used to skip regeneration when a full set already exists.
func (r *EmbeddingRepository) CountByDocumentAndModel(ctx context.Context, documentID uuid.UUID, modelName string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM krai_intelligence.embeddings e
		JOIN krai_intelligence.chunks c ON c.id = e.chunk_id
		WHERE c.document_id = $1 AND e.model_name = $2
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, documentID, modelName).Scan(&count)
	return count, err
}

// ImageRepository handles image rows.
type ImageRepository struct {
	db DB
}

// NewImageRepository creates a new image repository.
func NewImageRepository(db DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create inserts an image row.
func (r *ImageRepository) Create(ctx context.Context, img *Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	img.CreatedAt = time.Now()

	query := `
		INSERT INTO krai_content.images (id, document_id, page_number, image_index,
			storage_url, hash, width, height, colorspace, file_size, ai_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		img.ID, img.DocumentID, img.PageNumber, img.ImageIndex, img.StorageURL,
		img.Hash, img.Width, img.Height, img.Colorspace, img.FileSize,
		img.AIDescription, img.CreatedAt,
	)
	return err
}

// ExistsByHash reports whether a document already holds an image with hash.
func (r *ImageRepository) ExistsByHash(ctx context.Context, documentID uuid.UUID, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM krai_content.images WHERE document_id = $1 AND hash = $2)`,
		documentID, hash,
	).Scan(&exists)
	return exists, err
}

// ManufacturerRepository handles manufacturer rows.
type ManufacturerRepository struct {
	db DB
}

// NewManufacturerRepository creates a new manufacturer repository.
func NewManufacturerRepository(db DB) *ManufacturerRepository {
	return &ManufacturerRepository{db: db}
}

// GetOrCreate returns the manufacturer with the normalized name, inserting
// it when missing.
func (r *ManufacturerRepository) GetOrCreate(ctx context.Context, name string) (*Manufacturer, error) {
	name = NormalizeName(name)

	insert := `
		INSERT INTO krai_core.manufacturers (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), name, time.Now()); err != nil {
		return nil, err
	}

	m := &Manufacturer{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM krai_core.manufacturers WHERE name = $1`,
		name,
	).Scan(&m.ID, &m.Name, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ProductRepository handles product rows.
type ProductRepository struct {
	db DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetOrCreate returns the product for (manufacturer, model), inserting it
// when missing.
func (r *ProductRepository) GetOrCreate(ctx context.Context, manufacturerID uuid.UUID, model, seriesName string) (*Product, error) {
	insert := `
		INSERT INTO krai_core.products (id, manufacturer_id, model, series_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (manufacturer_id, model) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), manufacturerID, model, seriesName, time.Now()); err != nil {
		return nil, err
	}

	p := &Product{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, manufacturer_id, model, series_name, created_at
		 FROM krai_core.products WHERE manufacturer_id = $1 AND model = $2`,
		manufacturerID, model,
	).Scan(&p.ID, &p.ManufacturerID, &p.Model, &p.SeriesName, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ErrorCodeRepository handles extracted error-code rows.
type ErrorCodeRepository struct {
	db DB
}

// NewErrorCodeRepository creates a new error-code repository.
func NewErrorCodeRepository(db DB) *ErrorCodeRepository {
	return &ErrorCodeRepository{db: db}
}

// CreateBatch inserts error codes, skipping (document, code) duplicates.
func (r *ErrorCodeRepository) CreateBatch(ctx context.Context, codes []*ErrorCodeRecord) error {
	query := `
		INSERT INTO krai_intelligence.error_codes (id, document_id, code, description, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id, code) DO NOTHING
	`
	now := time.Now()
	for _, code := range codes {
		if code.ID == uuid.Nil {
			code.ID = uuid.New()
		}
		code.CreatedAt = now
		if _, err := r.db.ExecContext(ctx, query,
			code.ID, code.DocumentID, code.Code, code.Description, code.Category, code.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert error code %s: %w", code.Code, err)
		}
	}
	return nil
}

// NormalizeName lowercases and underscores a manufacturer name.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Repositories bundles all repositories over one connection.
type Repositories struct {
	Documents     *DocumentRepository
	Chunks        *ChunkRepository
	Embeddings    *EmbeddingRepository
	Images        *ImageRepository
	Manufacturers *ManufacturerRepository
	Products      *ProductRepository
	ErrorCodes    *ErrorCodeRepository
}

// NewRepositories creates all repositories over db.
func NewRepositories(db DB) *Repositories {
	return &Repositories{
		Documents:     NewDocumentRepository(db),
		Chunks:        NewChunkRepository(db),
		Embeddings:    NewEmbeddingRepository(db),
		Images:        NewImageRepository(db),
		Manufacturers: NewManufacturerRepository(db),
		Products:      NewProductRepository(db),
		ErrorCodes:    NewErrorCodeRepository(db),
	}
}
