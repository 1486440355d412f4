package sqlite

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

func seedSearchCorpus(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	docA := testDocument("doc-a")
	docA.Title = "Revue Mensuelle"
	require.NoError(t, store.SaveDocument(ctx, docA))

	docB := testDocument("doc-b")
	docB.SHA256 = "sha-doc-b"
	require.NoError(t, store.SaveDocument(ctx, docB))

	require.NoError(t, store.ReplaceChunks(ctx, "doc-a", []domain.Chunk{
		{ID: "a0", DocumentID: "doc-a", Index: 0, Page: 1, Text: "proche", Embedding: []float32{0.9, 0.1}},
		{ID: "a1", DocumentID: "doc-a", Index: 1, Page: 2, Text: "moyen", Embedding: []float32{0.5, 0.5}},
	}))
	require.NoError(t, store.ReplaceChunks(ctx, "doc-b", []domain.Chunk{
		{ID: "b0", DocumentID: "doc-b", Index: 0, Page: 1, Text: "lointain", Embedding: []float32{0, 1}},
	}))
}

func TestSearch_RanksByCosineDistance(t *testing.T) {
	store := newTestStore(t)
	seedSearchCorpus(t, store)

	results, err := store.Search(context.Background(), []float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a0", results[0].Chunk.ID)
	assert.Equal(t, "a1", results[1].Chunk.ID)
	assert.Equal(t, "b0", results[2].Chunk.ID)
	assert.Less(t, results[0].Distance, results[1].Distance)
	assert.Less(t, results[1].Distance, results[2].Distance)

	// The joined document rides along with each hit.
	assert.Equal(t, "Revue Mensuelle", results[0].Document.Title)
	assert.Equal(t, "doc-b", results[2].Document.ID)
}

func TestSearch_TopKTruncates(t *testing.T) {
	store := newTestStore(t)
	seedSearchCorpus(t, store)

	results, err := store.Search(context.Background(), []float32{1, 0}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a0", results[0].Chunk.ID)
	assert.Equal(t, "a1", results[1].Chunk.ID)
}

func TestSearch_DocumentFilter(t *testing.T) {
	store := newTestStore(t)
	seedSearchCorpus(t, store)

	results, err := store.Search(context.Background(), []float32{1, 0}, 10, "doc-b")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b0", results[0].Chunk.ID)
}

func TestSearch_InvalidTopK(t *testing.T) {
	store := newTestStore(t)

	for _, topK := range []int{0, -1} {
		_, err := store.Search(context.Background(), []float32{1, 0}, topK, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
}

func TestSearch_SkipsMismatchedWidths(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, testDocument("doc-1")))
	require.NoError(t, store.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Index: 0, Page: 1, Text: "ok", Embedding: []float32{1, 0}},
		{ID: "c1", DocumentID: "doc-1", Index: 1, Page: 1, Text: "stale", Embedding: []float32{1, 0, 0}},
	}))

	results, err := store.Search(ctx, []float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c0", results[0].Chunk.ID)
}

func TestSearch_TieBreakIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docA := testDocument("doc-a")
	docB := testDocument("doc-b")
	docB.SHA256 = "sha-other"
	require.NoError(t, store.SaveDocument(ctx, docB))
	require.NoError(t, store.SaveDocument(ctx, docA))

	// Identical embeddings produce identical distances.
	same := []float32{1, 0}
	require.NoError(t, store.ReplaceChunks(ctx, "doc-b", []domain.Chunk{
		{ID: "b0", DocumentID: "doc-b", Index: 0, Page: 1, Text: "x", Embedding: same},
	}))
	require.NoError(t, store.ReplaceChunks(ctx, "doc-a", []domain.Chunk{
		{ID: "a1", DocumentID: "doc-a", Index: 1, Page: 1, Text: "x", Embedding: same},
		{ID: "a0", DocumentID: "doc-a", Index: 0, Page: 1, Text: "x", Embedding: same},
	}))

	for i := 0; i < 5; i++ {
		results, err := store.Search(ctx, []float32{1, 0}, 10, "")
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a0", results[0].Chunk.ID)
		assert.Equal(t, "a1", results[1].Chunk.ID)
		assert.Equal(t, "b0", results[2].Chunk.ID)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineDistance(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineDistance_ScaleInvariant(t *testing.T) {
	a := []float32{0.3, 0.7, 0.2}
	b := []float32{0.6, 1.4, 0.4} // same direction, doubled magnitude
	assert.InDelta(t, 0, cosineDistance(a, b), 1e-6)
	assert.False(t, math.IsNaN(cosineDistance(a, b)))
}
