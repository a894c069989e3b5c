package storage

import (
	"time"

	"github.com/google/uuid"
)

// Document processing statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is a stored source document.
type Document struct {
	ID               uuid.UUID
	Filename         string
	FileHash         string // SHA-256 hex of the original bytes
	FileSize         int64
	StorageURL       string
	PageCount        int
	Manufacturer     string
	DocumentType     string
	Confidence       float64
	Version          string
	Models           []string
	Language         string
	ProcessingStatus string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Chunk is one contiguous slice of document text.
type Chunk struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	ChunkIndex  int
	Text        string
	TokenCount  int
	Fingerprint string // MD5 hex of Text
	PageStart   int
	PageEnd     int
	Strategy    string
	CreatedAt   time.Time
}

// Embedding is a vector for one chunk.
type Embedding struct {
	ID        uuid.UUID
	ChunkID   uuid.UUID
	Vector    []float64
	ModelName string
	Degraded  bool
	CreatedAt time.Time
}

// Image is a stored document image with optional vision analysis.
// (DocumentID, PageNumber, ImageIndex) identifies the image within the
// document.
type Image struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	PageNumber    int
	ImageIndex    int
	StorageURL    string
	Hash          string
	Width         int
	Height        int
	Colorspace    string
	FileSize      int64
	AIDescription string
	CreatedAt     time.Time
}

// Manufacturer is a normalized equipment maker.
type Manufacturer struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Product is one equipment model tied to a manufacturer.
type Product struct {
	ID             uuid.UUID
	ManufacturerID uuid.UUID
	Model          string
	SeriesName     string
	CreatedAt      time.Time
}

// ErrorCodeRecord is one extracted error code with its resolved description
// and category.
type ErrorCodeRecord struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Code        string
	Description string
	Category    string
	CreatedAt   time.Time
}
