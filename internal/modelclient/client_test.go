package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:        url,
		TextModel:      "llama3.2",
		VisionModel:    "llava",
		EmbeddingModel: "nomic-embed-text",
		Dimension:      4,
		MaxRetries:     3,
		RetryBackoff:   time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestEmbedSingleDecodesVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, 0.2, 0.3, 0.4}})
	}))
	defer srv.Close()

	emb, err := testClient(t, srv.URL).EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, emb)
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	out, err := testClient(t, srv.URL).Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).EmbedSingle(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Generate(context.Background(), "ping")
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmptyEmbeddingRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).EmbedSingle(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestHealthReportsMissingModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]string{
				{"name": "llama3.2"},
				{"name": "nomic-embed-text"},
			},
		})
	}))
	defer srv.Close()

	missing, err := testClient(t, srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llava"}, missing)
}

func TestHealthUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := testClient(t, srv.URL).Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestCancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL:        srv.URL,
		EmbeddingModel: "nomic-embed-text",
		MaxRetries:     5,
		RetryBackoff:   time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.EmbedSingle(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIErrorPermanence(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 400}).Permanent())
	assert.True(t, (&APIError{StatusCode: 404}).Permanent())
	assert.False(t, (&APIError{StatusCode: 500}).Permanent())
	assert.False(t, IsPermanent(context.Canceled))
}

func TestMockClientDeterministic(t *testing.T) {
	m := NewMockClient(8)

	a, err := m.EmbedSingle(context.Background(), "same text")
	require.NoError(t, err)
	b, err := m.EmbedSingle(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)

	c, err := m.EmbedSingle(context.Background(), "other text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
