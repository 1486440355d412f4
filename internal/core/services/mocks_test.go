package services

import (
	"context"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockExtractor implements driven.PDFExtractor for testing.
type mockExtractor struct {
	result *driven.ExtractionResult
	err    error
	calls  int
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte) (*driven.ExtractionResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockExtractor) Ping(_ context.Context) error { return nil }

// mockEmbedder implements driven.EmbeddingService. It returns a vector per
// input, derived from the text length so tests can distinguish them.
type mockEmbedder struct {
	dimensions int

	// err fails calls; with failuresLeft > 0 only that many calls fail
	// before the mock starts succeeding.
	err          error
	failuresLeft int

	// widthOverride forces returned vectors to this width when non-zero.
	widthOverride int

	batchSizes []int
}

func newMockEmbedder(dimensions int) *mockEmbedder {
	return &mockEmbedder{dimensions: dimensions}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.err != nil {
		err := m.err
		if m.failuresLeft > 0 {
			m.failuresLeft--
			if m.failuresLeft == 0 {
				m.err = nil
			}
		}
		return nil, err
	}

	width := m.dimensions
	if m.widthOverride != 0 {
		width = m.widthOverride
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, width)
		vec[0] = float32(len(text))
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *mockEmbedder) Dimensions() int          { return m.dimensions }
func (m *mockEmbedder) ModelName() string        { return "mock-embedder" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error             { return nil }

// mockCaptioner implements driven.CaptionService.
type mockCaptioner struct {
	caption  string
	table    string
	err      error
	failPath string // only this path fails
	calls    int
}

func (m *mockCaptioner) CaptionImage(_ context.Context, path string, kind domain.AssetKind) (*driven.AssetCaption, error) {
	m.calls++
	if m.err != nil && (m.failPath == "" || m.failPath == path) {
		return nil, m.err
	}
	result := &driven.AssetCaption{Caption: m.caption}
	if kind == domain.AssetTable {
		result.TableContent = m.table
	}
	return result, nil
}

func (m *mockCaptioner) Close() error { return nil }

// mockCompletion implements driven.CompletionService.
type mockCompletion struct {
	response   string
	err        error
	lastPrompt string
}

func (m *mockCompletion) Complete(_ context.Context, prompt string, _ driven.CompleteOptions) (string, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockCompletion) Ping(context.Context) error { return nil }
func (m *mockCompletion) Close() error               { return nil }

// mockSearcher implements driven.ChunkSearcher.
type mockSearcher struct {
	hits     []domain.RetrievedChunk
	err      error
	lastTopK int
	lastDoc  string
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, topK int, documentID string) ([]domain.RetrievedChunk, error) {
	m.lastTopK = topK
	m.lastDoc = documentID
	if m.err != nil {
		return nil, m.err
	}
	if topK < len(m.hits) {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}
