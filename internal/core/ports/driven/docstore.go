package driven

import (
	"context"
	"time"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

// DocumentStore persists documents and their owned blocks, chunks and
// assets. Backed by SQLite. Deleting a document cascades to all dependent
// records atomically.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentBySHA256 retrieves a document by its integrity hash.
	// Used for registration dedup.
	GetDocumentBySHA256(ctx context.Context, sha256 string) (*domain.Document, error)

	// ListDocuments returns all documents ordered by creation time.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// UpdateStatus records a stage outcome: the new status, the error
	// message (empty on success) and the processing timestamp.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string, processedAt time.Time) error

	// DeleteDocument removes a document and all its blocks, chunks and
	// assets in one transaction.
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceBlocks atomically replaces all blocks of a document.
	ReplaceBlocks(ctx context.Context, documentID string, blocks []domain.DocumentBlock) error

	// GetBlocks retrieves all blocks of a document ordered by index.
	GetBlocks(ctx context.Context, documentID string) ([]domain.DocumentBlock, error)

	// ReplaceChunks atomically replaces all chunks of a document. Readers
	// concurrent with the call observe either the full old set or the full
	// new set, never a mix.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks of a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// CountChunks returns the number of stored chunks for a document.
	CountChunks(ctx context.Context, documentID string) (int, error)

	// ReplaceAssets atomically replaces all assets of a document.
	ReplaceAssets(ctx context.Context, documentID string, assets []domain.DocumentAsset) error

	// GetAssets retrieves all assets of a document ordered by page.
	GetAssets(ctx context.Context, documentID string) ([]domain.DocumentAsset, error)

	// UpdateAsset stores the captioning outcome for one asset.
	UpdateAsset(ctx context.Context, asset *domain.DocumentAsset) error
}

// ChunkSearcher ranks stored chunks by cosine distance to a query vector.
// Read-only; tolerates concurrent writers by reading one consistent
// snapshot of the chunk set.
type ChunkSearcher interface {
	// Search returns the topK chunks closest to query in ascending
	// cosine-distance order, ties broken by (document ID, chunk index).
	// A non-empty documentID restricts candidates to that document.
	// topK larger than the candidate pool returns the full pool.
	Search(ctx context.Context, query []float32, topK int, documentID string) ([]domain.RetrievedChunk, error)
}
