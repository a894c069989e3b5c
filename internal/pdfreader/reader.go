// Package pdfreader extracts page text and raster images from PDF documents
// using go-fitz.
package pdfreader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/krai-ai/krai-engine/internal/observability"
)

// ErrUnsupportedFormat indicates the input could not be opened as a PDF.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Metadata holds document-level PDF metadata.
type Metadata struct {
	Title     string
	Author    string
	PageCount int
}

// PageText is the extracted text of a single page.
type PageText struct {
	PageNumber int // 1-based
	Text       string
}

// PageImage is a rendered page image with its content hash. Index counts
// images within the page; a page render is always index 0.
type PageImage struct {
	PageNumber int // 1-based
	Index      int
	Data       []byte
	Width      int
	Height     int
	Colorspace string
	Hash       string // SHA-256 hex of Data
	Format     string
}

// Options controls image extraction filtering.
type Options struct {
	MinImageDimension int
	MinImageBytes     int
	Logger            *observability.Logger
}

// Reader wraps an open PDF document.
type Reader struct {
	doc       *fitz.Document
	opts      Options
	logger    *observability.Logger
	pageCount int

	// Per-page accessors, swapped in tests to exercise page failures.
	pageText  func(page int) (string, error)
	pageImage func(page int) (image.Image, error)
}

// Open parses a PDF from raw bytes. The caller must Close the reader.
func Open(data []byte, opts Options) (*Reader, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if doc.NumPage() == 0 {
		doc.Close()
		return nil, fmt.Errorf("%w: document has no pages", ErrUnsupportedFormat)
	}
	if opts.MinImageDimension <= 0 {
		opts.MinImageDimension = 50
	}
	if opts.MinImageBytes <= 0 {
		opts.MinImageBytes = 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	return &Reader{
		doc:       doc,
		opts:      opts,
		logger:    logger,
		pageCount: doc.NumPage(),
		pageText:  doc.Text,
		pageImage: func(page int) (image.Image, error) { return doc.Image(page) },
	}, nil
}

// Close releases the underlying document.
func (r *Reader) Close() error {
	if r.doc != nil {
		r.doc.Close()
		r.doc = nil
	}
	return nil
}

// Metadata returns document-level metadata.
func (r *Reader) Metadata() Metadata {
	meta := r.doc.Metadata()
	return Metadata{
		Title:     meta["title"],
		Author:    meta["author"],
		PageCount: r.pageCount,
	}
}

// ExtractText returns the per-page text and the joined document text in
// page-marker form. Blank pages keep their page number but contribute no
// section to the joined text. A page that fails to extract is recorded as
// empty with a warning; it never fails the whole document.
func (r *Reader) ExtractText(ctx context.Context) ([]PageText, string, error) {
	pages := make([]PageText, 0, r.pageCount)
	var joined strings.Builder

	for pageNum := 0; pageNum < r.pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		default:
		}

		text, err := r.pageText(pageNum)
		if err != nil {
			r.logger.Warn().Err(err).Int("page", pageNum+1).Msg("Page text extraction failed")
			text = ""
		}

		text = strings.TrimSpace(text)
		pages = append(pages, PageText{PageNumber: pageNum + 1, Text: text})

		if text == "" {
			continue
		}
		fmt.Fprintf(&joined, "--- PAGE %d ---\n%s\n\n", pageNum+1, text)
	}

	return pages, joined.String(), nil
}

// ExtractImages renders each page to PNG, filters out images below the
// configured minimum dimension or byte size, and dedups by content hash
// within the document. The first page wins on duplicates. A page that fails
// to render is skipped with a warning.
func (r *Reader) ExtractImages(ctx context.Context) ([]PageImage, error) {
	images := make([]PageImage, 0, r.pageCount)
	seen := make(map[string]bool)

	for pageNum := 0; pageNum < r.pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := r.pageImage(pageNum)
		if err != nil {
			r.logger.Warn().Err(err).Int("page", pageNum+1).Msg("Page render failed")
			continue
		}

		bounds := img.Bounds()
		if bounds.Dx() < r.opts.MinImageDimension || bounds.Dy() < r.opts.MinImageDimension {
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			r.logger.Warn().Err(err).Int("page", pageNum+1).Msg("Page image encoding failed")
			continue
		}
		if buf.Len() < r.opts.MinImageBytes {
			continue
		}

		sum := sha256.Sum256(buf.Bytes())
		hash := hex.EncodeToString(sum[:])
		if seen[hash] {
			continue
		}
		seen[hash] = true

		images = append(images, PageImage{
			PageNumber: pageNum + 1,
			Index:      0, // one render per page
			Data:       buf.Bytes(),
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Colorspace: "rgb",
			Hash:       hash,
			Format:     "png",
		})
	}

	return images, nil
}
