// Package objectstore provides content-addressed uploads to Supabase-style
// object storage.
package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const maxFileSize = 104857600 // 100 MiB bucket limit

// Config holds object storage settings.
type Config struct {
	BaseURL        string
	ServiceRoleKey string
	Timeout        time.Duration
}

// Client uploads objects to Supabase storage buckets.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a new object storage client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("storage base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.ServiceRoleKey,
	}, nil
}

// ObjectKey derives the content-addressed key for data: the SHA-256 hex of
// the bytes plus the original file extension.
func ObjectKey(data []byte, filename string) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + strings.ToLower(path.Ext(filename))
}

// Upload stores data under its content-addressed key in bucket. A HEAD
// request runs first; when the object already exists the upload is skipped.
// Returns the object URL and whether the object was already present.
func (c *Client) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, bool, error) {
	objectURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, key)

	exists, err := c.exists(ctx, objectURL)
	if err != nil {
		return "", false, err
	}
	if exists {
		return objectURL, true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, objectURL, bytes.NewReader(data))
	if err != nil {
		return "", false, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		// A concurrent uploader may have won the race; the object is there
		// either way.
		if resp.StatusCode == http.StatusConflict {
			return objectURL, true, nil
		}
		return "", false, fmt.Errorf("upload object: status %d: %s", resp.StatusCode, string(body))
	}

	return objectURL, false, nil
}

// exists checks object presence with a HEAD request.
func (c *Client) exists(ctx context.Context, objectURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, objectURL, nil)
	if err != nil {
		return false, fmt.Errorf("create head request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("head object: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

type bucketRequest struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Public           bool     `json:"public"`
	FileSizeLimit    int      `json:"file_size_limit"`
	AllowedMimeTypes []string `json:"allowed_mime_types,omitempty"`
}

// EnsureBucket creates a bucket if it does not already exist. An existing
// bucket (409) counts as success.
func (c *Client) EnsureBucket(ctx context.Context, name string, public bool, allowedMimeTypes []string) error {
	body, err := json.Marshal(bucketRequest{
		ID:               name,
		Name:             name,
		Public:           public,
		FileSizeLimit:    maxFileSize,
		AllowedMimeTypes: allowedMimeTypes,
	})
	if err != nil {
		return fmt.Errorf("marshal bucket request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/storage/v1/bucket", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create bucket request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusConflict:
		return nil
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create bucket %s: status %d: %s", name, resp.StatusCode, string(respBody))
	}
}

// Uploader is the interface the pipeline depends on.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, bool, error)
	EnsureBucket(ctx context.Context, name string, public bool, allowedMimeTypes []string) error
}

var _ Uploader = (*Client)(nil)
