// Package memory provides in-memory storage adapters for tests and
// development.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.ChunkSearcher = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore and
// driven.ChunkSearcher.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	blocks    map[string][]domain.DocumentBlock
	chunks    map[string][]domain.Chunk
	assets    map[string][]domain.DocumentAsset
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		blocks:    make(map[string][]domain.DocumentBlock),
		chunks:    make(map[string][]domain.Chunk),
		assets:    make(map[string][]domain.DocumentAsset),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentBySHA256 retrieves a document by its integrity hash.
func (s *DocumentStore) GetDocumentBySHA256(_ context.Context, sha256 string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if doc.SHA256 == sha256 {
			d := doc
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListDocuments returns all documents ordered by creation time.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// UpdateStatus records a stage outcome for a document.
func (s *DocumentStore) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMsg string, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errMsg
	doc.ProcessedAt = &processedAt
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes a document and all its dependent records.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.blocks, id)
	delete(s.chunks, id)
	delete(s.assets, id)
	return nil
}

// ReplaceBlocks replaces all blocks of a document.
func (s *DocumentStore) ReplaceBlocks(_ context.Context, documentID string, blocks []domain.DocumentBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[documentID] = append([]domain.DocumentBlock(nil), blocks...)
	return nil
}

// GetBlocks retrieves all blocks of a document ordered by index.
func (s *DocumentStore) GetBlocks(_ context.Context, documentID string) ([]domain.DocumentBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.DocumentBlock(nil), s.blocks[documentID]...), nil
}

// ReplaceChunks replaces all chunks of a document.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[documentID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

// GetChunks retrieves all chunks of a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks[documentID]...), nil
}

// CountChunks returns the number of stored chunks for a document.
func (s *DocumentStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

// ReplaceAssets replaces all assets of a document.
func (s *DocumentStore) ReplaceAssets(_ context.Context, documentID string, assets []domain.DocumentAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[documentID] = append([]domain.DocumentAsset(nil), assets...)
	return nil
}

// GetAssets retrieves all assets of a document ordered by page.
func (s *DocumentStore) GetAssets(_ context.Context, documentID string) ([]domain.DocumentAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := append([]domain.DocumentAsset(nil), s.assets[documentID]...)
	sort.SliceStable(assets, func(i, j int) bool { return assets[i].Page < assets[j].Page })
	return assets, nil
}

// UpdateAsset stores the captioning outcome for one asset.
func (s *DocumentStore) UpdateAsset(_ context.Context, asset *domain.DocumentAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assets, ok := s.assets[asset.DocumentID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range assets {
		if assets[i].ID == asset.ID {
			assets[i] = *asset
			return nil
		}
	}
	return domain.ErrNotFound
}

// Search returns the topK chunks closest to query by cosine distance.
func (s *DocumentStore) Search(_ context.Context, query []float32, topK int, documentID string) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []domain.RetrievedChunk
	for docID, chunks := range s.chunks {
		if documentID != "" && docID != documentID {
			continue
		}
		doc := s.documents[docID]
		for _, chunk := range chunks {
			if len(chunk.Embedding) != len(query) {
				continue
			}
			results = append(results, domain.RetrievedChunk{
				Chunk:    chunk,
				Document: doc,
				Distance: cosineDistance(query, chunk.Embedding),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		if results[i].Chunk.DocumentID != results[j].Chunk.DocumentID {
			return results[i].Chunk.DocumentID < results[j].Chunk.DocumentID
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// cosineDistance computes 1 - cosine similarity of two equal-length vectors.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
