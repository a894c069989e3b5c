package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey([]byte("hello"), "Manual.PDF")
	// sha256("hello") plus the lowercased extension.
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824.pdf", key)

	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		ObjectKey([]byte("hello"), "noextension"))
}

func TestUploadSkipsWhenObjectExists(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			posts++
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, ServiceRoleKey: "key"})
	require.NoError(t, err)

	url, existed, err := c.Upload(context.Background(), "docs", "abc.pdf", []byte("data"), "application/pdf")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, srv.URL+"/storage/v1/object/docs/abc.pdf", url)
	assert.Zero(t, posts)
}

func TestUploadPostsWhenMissing(t *testing.T) {
	var gotBody []byte
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			gotBody, _ = io.ReadAll(r.Body)
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, ServiceRoleKey: "secret"})
	require.NoError(t, err)

	_, existed, err := c.Upload(context.Background(), "docs", "abc.pdf", []byte("data"), "application/pdf")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, []byte("data"), gotBody)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/pdf", gotContentType)
}

func TestUploadConflictTreatedAsExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			w.WriteHeader(http.StatusConflict)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	url, existed, err := c.Upload(context.Background(), "docs", "abc.pdf", []byte("data"), "application/pdf")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.NotEmpty(t, url)
}

func TestUploadServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			http.Error(w, "disk full", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, _, err = c.Upload(context.Background(), "docs", "abc.pdf", []byte("data"), "application/pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestEnsureBucketExistingIsSuccess(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, c.EnsureBucket(context.Background(), "krai-documents-images", false, []string{"image/png"}))
	assert.Equal(t, []string{"/storage/v1/bucket"}, paths)
}

func TestEnsureBucketFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.EnsureBucket(context.Background(), "docs", false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
