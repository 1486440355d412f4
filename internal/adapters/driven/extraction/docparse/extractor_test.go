package docparse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

func TestExtract_Success(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/extract", r.URL.Path)
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"page_count": 2,
			"blocks": [
				{"text": "REVUE MENSUELLE", "page": 1, "font_size": 20.0, "is_bold": true, "bbox": [56.0, 70.0, 540.0, 96.0]},
				{"text": "Le marché a progressé.", "page": 1, "font_size": 10.0, "is_bold": false}
			],
			"assets": [
				{"page": 2, "kind": "table", "local_path": "/tmp/assets/t1.png"},
				{"page": 2, "kind": "chart", "local_path": "/tmp/assets/f1.png"}
			]
		}`))
	}))
	defer server.Close()

	extractor := New(Config{BaseURL: server.URL})
	result, err := extractor.Extract(context.Background(), []byte("%PDF-1.7 fake"))
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", gotContentType)
	assert.Equal(t, "%PDF-1.7 fake", string(gotBody))

	assert.Equal(t, 2, result.PageCount)
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, "REVUE MENSUELLE", result.Blocks[0].Text)
	assert.Equal(t, 20.0, result.Blocks[0].FontSize)
	assert.True(t, result.Blocks[0].Bold)
	assert.Equal(t, []float64{56.0, 70.0, 540.0, 96.0}, result.Blocks[0].BBox)

	require.Len(t, result.Assets, 2)
	assert.Equal(t, domain.AssetTable, result.Assets[0].Kind)
	// Unknown kinds default to figure.
	assert.Equal(t, domain.AssetFigure, result.Assets[1].Kind)
	assert.Equal(t, "/tmp/assets/f1.png", result.Assets[1].LocalPath)
}

func TestExtract_SidecarError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "encrypted PDF"}`))
	}))
	defer server.Close()

	extractor := New(Config{BaseURL: server.URL})
	_, err := extractor.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExtraction))
	assert.Contains(t, err.Error(), "encrypted PDF")
}

func TestExtract_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	extractor := New(Config{BaseURL: server.URL})
	_, err := extractor.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExtraction))
	assert.Contains(t, err.Error(), "status 500")
}

func TestExtract_EmptyInput(t *testing.T) {
	extractor := New(Config{BaseURL: "http://unused"})
	_, err := extractor.Extract(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExtraction))
}

func TestExtract_TimeoutMapsToCapabilityTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	extractor := New(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := extractor.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityTimeout))
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	extractor := New(Config{BaseURL: server.URL})
	assert.NoError(t, extractor.Ping(context.Background()))

	down := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond})
	assert.Error(t, down.Ping(context.Background()))
}
