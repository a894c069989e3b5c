package modelclient

import (
	"context"
	"math"
)

// Embedder defines the interface for embedding generation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	EmbedSingle(ctx context.Context, text string) ([]float64, error)
	Model() string
	Dimension() int
}

// ModelRunner defines the interface for text and vision inference.
type ModelRunner interface {
	Generate(ctx context.Context, prompt string) (string, error)
	AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error)
}

// MockClient provides deterministic embeddings and canned generation
// responses for testing.
type MockClient struct {
	dimension    int
	GenerateText string
	VisionText   string

	// EmbedErr, when set, is returned by every embedding call.
	EmbedErr error
}

// NewMockClient creates a mock client.
func NewMockClient(dimension int) *MockClient {
	if dimension <= 0 {
		dimension = 768
	}
	return &MockClient{
		dimension:    dimension,
		GenerateText: "mock response",
		VisionText:   "mock image description",
	}
}

// Embed generates hash-based deterministic embeddings.
func (c *MockClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))
	for i := range texts {
		emb, err := c.EmbedSingle(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// EmbedSingle generates a hash-based deterministic embedding.
func (c *MockClient) EmbedSingle(_ context.Context, text string) ([]float64, error) {
	if c.EmbedErr != nil {
		return nil, c.EmbedErr
	}
	emb := make([]float64, c.dimension)
	for j, char := range text {
		emb[j%c.dimension] += float64(char) / 1000.0
	}
	return normalize(emb), nil
}

// Generate returns the canned generation response.
func (c *MockClient) Generate(_ context.Context, _ string) (string, error) {
	return c.GenerateText, nil
}

// AnalyzeImage returns the canned vision response.
func (c *MockClient) AnalyzeImage(_ context.Context, _ string, _ []byte) (string, error) {
	return c.VisionText, nil
}

// Model returns the mock model name.
func (c *MockClient) Model() string {
	return "mock-embedding-model"
}

// Dimension returns the embedding dimension.
func (c *MockClient) Dimension() int {
	return c.dimension
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] *= norm
	}
	return v
}

// Ensure implementations satisfy interfaces.
var (
	_ Embedder    = (*Client)(nil)
	_ Embedder    = (*MockClient)(nil)
	_ ModelRunner = (*Client)(nil)
	_ ModelRunner = (*MockClient)(nil)
)
