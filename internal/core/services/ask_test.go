package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

func askFixtures() (*mockEmbedder, *mockSearcher, *mockCompletion) {
	embedder := newMockEmbedder(testDimensions)
	searcher := &mockSearcher{hits: []domain.RetrievedChunk{
		{
			Chunk:    domain.Chunk{ID: "c1", DocumentID: "doc-1", Index: 0, Page: 4, Text: "Le TUNINDEX a progressé de 8%."},
			Document: domain.Document{ID: "doc-1", Title: "Revue Mensuelle"},
			Distance: 0.1,
		},
		{
			Chunk:    domain.Chunk{ID: "c2", DocumentID: "doc-1", Index: 3, Page: 9, Text: "La capitalisation atteint 25 milliards."},
			Document: domain.Document{ID: "doc-1", Title: "Revue Mensuelle"},
			Distance: 0.3,
		},
	}}
	completion := &mockCompletion{response: "Le TUNINDEX a progressé de 8% [Doc doc-1 p.4]."}
	return embedder, searcher, completion
}

func TestAsk_GeneratesCitedAnswer(t *testing.T) {
	embedder, searcher, completion := askFixtures()
	svc := NewAskService(embedder, NewRetrievalService(searcher, testDimensions), completion)

	answer, err := svc.Ask(context.Background(), "Comment a évolué le TUNINDEX ?", 5, "")
	require.NoError(t, err)
	assert.Equal(t, "Le TUNINDEX a progressé de 8% [Doc doc-1 p.4].", answer.Text)
	assert.Len(t, answer.Sources, 2)

	// The prompt grounds the model on the retrieved chunks with their
	// page-level citations.
	assert.Contains(t, completion.lastPrompt, "[Doc doc-1 p.4] Le TUNINDEX a progressé de 8%.")
	assert.Contains(t, completion.lastPrompt, "[Doc doc-1 p.9]")
	assert.Contains(t, completion.lastPrompt, "Comment a évolué le TUNINDEX ?")
}

func TestAsk_WithoutCompletionReturnsChunksOnly(t *testing.T) {
	embedder, searcher, _ := askFixtures()
	svc := NewAskService(embedder, NewRetrievalService(searcher, testDimensions), nil)

	answer, err := svc.Ask(context.Background(), "question", 5, "")
	require.NoError(t, err)
	assert.Empty(t, answer.Text)
	assert.Len(t, answer.Sources, 2)
}

func TestAsk_WithoutEmbedder(t *testing.T) {
	_, searcher, completion := askFixtures()
	svc := NewAskService(nil, NewRetrievalService(searcher, testDimensions), completion)

	_, err := svc.Ask(context.Background(), "question", 5, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
	assert.Empty(t, completion.lastPrompt)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	embedder, searcher, completion := askFixtures()
	svc := NewAskService(embedder, NewRetrievalService(searcher, testDimensions), completion)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Ask(context.Background(), q, 5, "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	}
}

func TestAsk_InvalidTopKPropagates(t *testing.T) {
	embedder, searcher, completion := askFixtures()
	svc := NewAskService(embedder, NewRetrievalService(searcher, testDimensions), completion)

	_, err := svc.Ask(context.Background(), "question", 0, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestAsk_NoHitsSkipsCompletion(t *testing.T) {
	embedder := newMockEmbedder(testDimensions)
	searcher := &mockSearcher{}
	completion := &mockCompletion{response: "should not be called"}
	svc := NewAskService(embedder, NewRetrievalService(searcher, testDimensions), completion)

	answer, err := svc.Ask(context.Background(), "question", 5, "")
	require.NoError(t, err)
	assert.Empty(t, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, completion.lastPrompt)
}

func TestAsk_CompletionFailure(t *testing.T) {
	embedder, searcher, completion := askFixtures()
	completion.err = errors.New("model overloaded")
	svc := NewAskService(embedder, NewRetrievalService(searcher, testDimensions), completion)

	_, err := svc.Ask(context.Background(), "question", 5, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate answer")
}

func TestAsk_DocumentFilterForwarded(t *testing.T) {
	embedder, searcher, completion := askFixtures()
	svc := NewAskService(embedder, NewRetrievalService(searcher, testDimensions), completion)

	_, err := svc.Ask(context.Background(), "question", 3, "doc-9")
	require.NoError(t, err)
	assert.Equal(t, 3, searcher.lastTopK)
	assert.Equal(t, "doc-9", searcher.lastDoc)
}
