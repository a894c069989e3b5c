// Package modelclient provides access to a local Ollama server for text
// generation, image analysis, and embedding generation.
package modelclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the model server. Permanent reports
// whether retrying is pointless (4xx).
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API error: status %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether the error is a client error that retries cannot
// fix.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsPermanent reports whether err is a permanent model API failure.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Permanent()
}

// Config holds model client configuration.
type Config struct {
	BaseURL             string
	TextModel           string
	VisionModel         string
	EmbeddingModel      string
	Dimension           int
	Timeout             time.Duration
	MaxRetries          int
	RetryBackoff        time.Duration
	MaxConcurrentText   int
	MaxConcurrentVision int
	MaxConcurrentEmbed  int
}

// Client talks to an Ollama server over HTTP.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	textModel      string
	visionModel    string
	embeddingModel string
	dimension      int
	maxRetries     int
	retryBackoff   time.Duration

	textSem   chan struct{}
	visionSem chan struct{}
	embedSem  chan struct{}
}

// NewClient creates a new model client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.MaxConcurrentText <= 0 {
		cfg.MaxConcurrentText = 2
	}
	if cfg.MaxConcurrentVision <= 0 {
		cfg.MaxConcurrentVision = 1
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 4
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        cfg.BaseURL,
		textModel:      cfg.TextModel,
		visionModel:    cfg.VisionModel,
		embeddingModel: cfg.EmbeddingModel,
		dimension:      cfg.Dimension,
		maxRetries:     cfg.MaxRetries,
		retryBackoff:   cfg.RetryBackoff,
		textSem:        make(chan struct{}, cfg.MaxConcurrentText),
		visionSem:      make(chan struct{}, cfg.MaxConcurrentVision),
		embedSem:       make(chan struct{}, cfg.MaxConcurrentEmbed),
	}, nil
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate runs a text prompt through the configured text model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := acquire(ctx, c.textSem); err != nil {
		return "", err
	}
	defer func() { <-c.textSem }()

	req := generateRequest{Model: c.textModel, Prompt: prompt, Stream: false}
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Response, nil
}

// AnalyzeImage runs an image plus prompt through the configured vision model.
func (c *Client) AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error) {
	if err := acquire(ctx, c.visionSem); err != nil {
		return "", err
	}
	defer func() { <-c.visionSem }()

	req := generateRequest{
		Model:  c.visionModel,
		Prompt: prompt,
		Stream: false,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
	}
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", fmt.Errorf("analyze image: %w", err)
	}
	return resp.Response, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	if err := acquire(ctx, c.embedSem); err != nil {
		return nil, err
	}
	defer func() { <-c.embedSem }()

	req := embeddingRequest{Model: c.embeddingModel, Prompt: text}
	var resp embeddingResponse
	if err := c.post(ctx, "/api/embeddings", req, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding returned")
	}
	return resp.Embedding, nil
}

// Embed generates embeddings for multiple texts sequentially. Callers that
// need fan-out parallelism run their own workers over EmbedSingle; the
// embedding semaphore bounds server load either way.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, 0, len(texts))
	for i, text := range texts {
		emb, err := c.EmbedSingle(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings = append(embeddings, emb)
	}
	return embeddings, nil
}

// Health checks the server and reports which configured models are missing.
func (c *Client) Health(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	available := make(map[string]bool, len(tags.Models))
	for _, m := range tags.Models {
		available[m.Name] = true
	}

	var missing []string
	for _, want := range []string{c.textModel, c.visionModel, c.embeddingModel} {
		if want != "" && !available[want] {
			missing = append(missing, want)
		}
	}
	return missing, nil
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return c.embeddingModel
}

// Dimension returns the embedding dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

// post sends a JSON request with retries. Transport errors and 5xx responses
// are retried with exponential backoff; 4xx responses fail immediately.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("send request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
			if apiErr.Permanent() {
				return apiErr
			}
			lastErr = apiErr
			continue
		}

		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("after %d attempts: %w", c.maxRetries, lastErr)
}

func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
