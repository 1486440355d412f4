package driving

import (
	"context"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

// RegisterMetadata carries optional metadata supplied at registration,
// typically by the scraper that discovered the document.
type RegisterMetadata struct {
	// Title is the human-readable title.
	Title string

	// SourceURL is the page the document was discovered on.
	SourceURL string

	// PDFURL is the direct download location.
	PDFURL string

	// PublishedAt is the publication date in ISO format (yyyy-mm-dd),
	// empty when unknown.
	PublishedAt string
}

// StageReport summarises one pipeline stage run.
type StageReport struct {
	// DocumentID identifies the processed document.
	DocumentID string

	// Skipped is true when the run was an idempotent no-op because the
	// stage output already existed and overwrite was not requested.
	Skipped bool

	// ItemsWritten counts the records the stage produced (blocks, assets
	// captioned, chunks embedded).
	ItemsWritten int

	// Err holds the stage failure recorded on the document, nil on
	// success. A failed document remains eligible for retry.
	Err error
}

// RegisterService registers raw PDFs into the pipeline.
type RegisterService interface {
	// Register stores the PDF bytes, computes the integrity hash and
	// creates a pending document. Registering bytes whose hash already
	// exists returns the existing document's ID without side effects.
	Register(ctx context.Context, filename string, data []byte, meta RegisterMetadata) (string, error)

	// Delete removes a document and everything derived from it.
	Delete(ctx context.Context, documentID string) error
}

// PipelineService runs processing stages against registered documents.
type PipelineService interface {
	// RunStructuring extracts and structures the document's text blocks.
	RunStructuring(ctx context.Context, documentID string) (*StageReport, error)

	// RunCaptioning captions the document's pending assets. With
	// overwrite, completed assets are re-captioned too.
	RunCaptioning(ctx context.Context, documentID string, overwrite bool) (*StageReport, error)

	// RunChunkAndEmbed splits, embeds and stores the document's chunks.
	// Without overwrite, an already-chunked document is a no-op report.
	RunChunkAndEmbed(ctx context.Context, documentID string, overwrite bool) (*StageReport, error)

	// RunChunkAndEmbedAll processes every eligible document independently;
	// one document's failure does not abort the others.
	RunChunkAndEmbedAll(ctx context.Context, overwrite bool) ([]StageReport, error)

	// Status returns the document's current pipeline state.
	Status(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns all registered documents.
	List(ctx context.Context) ([]domain.Document, error)
}

// AskService answers natural-language questions from the indexed corpus.
type AskService interface {
	// Ask embeds the question, retrieves the topK closest chunks
	// (optionally within one document) and, when a completion service is
	// configured, generates a cited answer from them.
	Ask(ctx context.Context, question string, topK int, documentID string) (*domain.Answer, error)
}
