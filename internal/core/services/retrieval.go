package services

import (
	"context"
	"fmt"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
)

// RetrievalService ranks stored chunks against a query vector. It is
// read-only and safe to call concurrently with processing stages: the
// searcher reads one consistent snapshot of the chunk set.
type RetrievalService struct {
	searcher   driven.ChunkSearcher
	dimensions int
}

// NewRetrievalService creates a retrieval service validating query vectors
// against the configured dimensionality.
func NewRetrievalService(searcher driven.ChunkSearcher, dimensions int) *RetrievalService {
	return &RetrievalService{searcher: searcher, dimensions: dimensions}
}

// Retrieve returns the chunks closest to query in ascending cosine-distance
// order, ties broken by (document ID, chunk index). TopK must be positive;
// a TopK beyond the candidate pool returns the full pool.
func (s *RetrievalService) Retrieve(ctx context.Context, query []float32, opts domain.RetrievalOptions) ([]domain.RetrievedChunk, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, opts.TopK)
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d components, index uses %d",
			domain.ErrDimensionMismatch, len(query), s.dimensions)
	}

	hits, err := s.searcher.Search(ctx, query, opts.TopK, opts.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	logger.Debug("Retrieved %d chunks (top_k=%d, doc=%q)", len(hits), opts.TopK, opts.DocumentID)
	return hits, nil
}
