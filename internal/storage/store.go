package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SQLStore exposes the persistence operations the pipeline needs, backed by
// the repositories. Chunk and embedding batches for one document commit in a
// single transaction.
type SQLStore struct {
	db    *sql.DB
	repos *Repositories
}

// NewSQLStore creates a store over an open database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, repos: NewRepositories(db)}
}

// FindDocumentByHash looks a document up by content hash.
func (s *SQLStore) FindDocumentByHash(ctx context.Context, fileHash string) (*Document, error) {
	return s.repos.Documents.FindByHash(ctx, fileHash)
}

// CreateDocument inserts a document row.
func (s *SQLStore) CreateDocument(ctx context.Context, doc *Document) error {
	return s.repos.Documents.Create(ctx, doc)
}

// UpdateDocumentStatus updates a document's processing status.
func (s *SQLStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string) error {
	return s.repos.Documents.UpdateStatus(ctx, id, status)
}

// SetDocumentMetadata stores classification and extraction results.
func (s *SQLStore) SetDocumentMetadata(ctx context.Context, id uuid.UUID, manufacturer, docType string, confidence float64, version string, models []string) error {
	return s.repos.Documents.SetMetadata(ctx, id, manufacturer, docType, confidence, version, models)
}

// SaveChunksAndEmbeddings writes a document's chunk and embedding batches
// atomically. Either the whole ordered batch commits or nothing does.
func (s *SQLStore) SaveChunksAndEmbeddings(ctx context.Context, chunks []*Chunk, embeddings []*Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	txRepos := NewRepositories(tx)
	if err := txRepos.Chunks.CreateBatch(ctx, chunks); err != nil {
		return err
	}
	if len(embeddings) > 0 {
		if err := txRepos.Embeddings.CreateBatch(ctx, embeddings); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// CountChunks returns the chunk count for a document.
func (s *SQLStore) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	return s.repos.Chunks.CountByDocument(ctx, documentID)
}

// CountEmbeddings counts embeddings for a document's chunks under a model.
func (s *SQLStore) CountEmbeddings(ctx context.Context, documentID uuid.UUID, modelName string) (int, error) {
	return s.repos.Embeddings.CountByDocumentAndModel(ctx, documentID, modelName)
}

// CreateImage inserts an image row.
func (s *SQLStore) CreateImage(ctx context.Context, img *Image) error {
	return s.repos.Images.Create(ctx, img)
}

// ImageExistsByHash reports whether the document already holds an image with
// the given content hash.
func (s *SQLStore) ImageExistsByHash(ctx context.Context, documentID uuid.UUID, hash string) (bool, error) {
	return s.repos.Images.ExistsByHash(ctx, documentID, hash)
}

// GetOrCreateManufacturer resolves a manufacturer row by name.
func (s *SQLStore) GetOrCreateManufacturer(ctx context.Context, name string) (*Manufacturer, error) {
	return s.repos.Manufacturers.GetOrCreate(ctx, name)
}

// GetOrCreateProduct resolves a product row by manufacturer and model.
func (s *SQLStore) GetOrCreateProduct(ctx context.Context, manufacturerID uuid.UUID, model, seriesName string) (*Product, error) {
	return s.repos.Products.GetOrCreate(ctx, manufacturerID, model, seriesName)
}

// CreateErrorCodes inserts extracted error codes.
func (s *SQLStore) CreateErrorCodes(ctx context.Context, codes []*ErrorCodeRecord) error {
	return s.repos.ErrorCodes.CreateBatch(ctx, codes)
}
