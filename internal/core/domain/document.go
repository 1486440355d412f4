package domain

import "time"

// Document represents a registered research PDF and its processing state.
// It is created at registration and mutated only by pipeline stages
// advancing status or recording errors.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the stored file name of the original PDF.
	Filename string

	// Title is the human-readable title from the publisher.
	Title string

	// SourceURL is the page the document was discovered on.
	SourceURL string

	// PDFURL is the direct download location, if known.
	PDFURL string

	// PublishedAt is the publication date reported by the source.
	PublishedAt *time.Time

	// SHA256 is the integrity hash of the original PDF bytes.
	SHA256 string

	// SizeBytes is the size of the original PDF.
	SizeBytes int64

	// LocalPath is where the original PDF is stored on disk.
	LocalPath string

	// PageCount is set by the structuring stage.
	PageCount int

	// Status is the authoritative pipeline state (see status.go).
	Status DocumentStatus

	// ErrorMessage records the cause of the last failed stage run.
	// Empty when the last run at Status succeeded.
	ErrorMessage string

	// CreatedAt is when the document was registered.
	CreatedAt time.Time

	// ProcessedAt is when a pipeline stage last touched the document.
	ProcessedAt *time.Time
}

// BlockType classifies a structured text block.
type BlockType string

// Block types produced by the structuring stage.
const (
	BlockTitle     BlockType = "title"
	BlockParagraph BlockType = "paragraph"
	BlockListItem  BlockType = "list_item"
)

// DocumentBlock is one ordered structured text unit of a document page.
// Blocks are immutable once written and replaced wholesale on re-runs.
type DocumentBlock struct {
	// ID is the unique identifier for the block.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the ordinal position within the document, contiguous from 0.
	Index int

	// Page is the 1-based source page number.
	Page int

	// Type classifies the block.
	Type BlockType

	// Text is the normalised block text.
	Text string

	// FontSize is the dominant font size of the source spans.
	FontSize float64

	// Bold reports whether the source spans were bold.
	Bold bool
}

// Chunk is a bounded text window of a document paired with its embedding.
// It is the unit of retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the ordinal position within the document, contiguous from 0.
	// Pages are non-decreasing with Index.
	Index int

	// Page is the 1-based source page the chunk is attributed to.
	Page int

	// Text is the chunk content.
	Text string

	// Embedding is the vector representation. Every persisted chunk has
	// exactly the configured number of components.
	Embedding []float32
}

// AssetKind classifies an extracted document asset.
type AssetKind string

// Asset kinds.
const (
	AssetTable  AssetKind = "table"
	AssetFigure AssetKind = "figure"
)

// AssetStatus is the captioning state of an asset.
type AssetStatus string

// Asset statuses.
const (
	AssetPending   AssetStatus = "pending"
	AssetCompleted AssetStatus = "completed"
	AssetFailed    AssetStatus = "failed"
)

// DocumentAsset is an extracted table or figure cropped from a page.
// Captions become contextual retrieval material during chunking.
type DocumentAsset struct {
	// ID is the unique identifier for the asset.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Page is the 1-based source page number.
	Page int

	// Kind classifies the asset.
	Kind AssetKind

	// LocalPath is where the cropped image is stored on disk.
	LocalPath string

	// Caption is the generated description, set when captioning completes.
	Caption string

	// TableContent holds structured table content (markdown) for tables.
	TableContent string

	// Status is the captioning state.
	Status AssetStatus

	// ErrorMessage records why captioning failed, if it did.
	ErrorMessage string
}
