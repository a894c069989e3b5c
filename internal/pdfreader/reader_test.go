package pdfreader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krai-ai/krai-engine/internal/observability"
)

func stubReader(pages int) *Reader {
	return &Reader{
		opts:      Options{MinImageDimension: 50, MinImageBytes: 1},
		logger:    observability.Nop(),
		pageCount: pages,
	}
}

func TestExtractTextToleratesPageFailure(t *testing.T) {
	r := stubReader(3)
	r.pageText = func(page int) (string, error) {
		if page == 1 {
			return "", errors.New("damaged page stream")
		}
		return fmt.Sprintf("content of page %d", page+1), nil
	}

	pages, joined, err := r.ExtractText(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)

	// The broken page comes back empty; its neighbors are untouched.
	assert.Equal(t, "content of page 1", pages[0].Text)
	assert.Empty(t, pages[1].Text)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Equal(t, "content of page 3", pages[2].Text)

	assert.Contains(t, joined, "--- PAGE 1 ---")
	assert.NotContains(t, joined, "--- PAGE 2 ---")
	assert.Contains(t, joined, "--- PAGE 3 ---")
}

func TestExtractImagesSkipsFailedPage(t *testing.T) {
	r := stubReader(2)
	r.pageImage = func(page int) (image.Image, error) {
		if page == 0 {
			return nil, errors.New("render failure")
		}
		return image.NewRGBA(image.Rect(0, 0, 100, 80)), nil
	}

	images, err := r.ExtractImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, 2, images[0].PageNumber)
	assert.Equal(t, 0, images[0].Index)
	assert.Equal(t, "rgb", images[0].Colorspace)
	assert.Equal(t, "png", images[0].Format)
	assert.Len(t, images[0].Hash, 64)
}

func TestExtractImagesFiltersSmallRenders(t *testing.T) {
	r := stubReader(2)
	r.pageImage = func(page int) (image.Image, error) {
		if page == 0 {
			return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
		}
		return image.NewRGBA(image.Rect(0, 0, 100, 80)), nil
	}

	images, err := r.ExtractImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, 2, images[0].PageNumber)
}

func TestExtractImagesDedupesByHash(t *testing.T) {
	r := stubReader(2)
	r.pageImage = func(int) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 100, 80)), nil
	}

	images, err := r.ExtractImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, 1, images[0].PageNumber)
}

func TestExtractTextCancelled(t *testing.T) {
	r := stubReader(2)
	r.pageText = func(int) (string, error) { return "text", nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.ExtractText(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
