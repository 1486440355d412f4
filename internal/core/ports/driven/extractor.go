package driven

import (
	"context"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

// RawBlock is one line-level text item as reported by the extraction
// capability, before structuring.
type RawBlock struct {
	// Text is the raw span text.
	Text string

	// Page is the 1-based page number.
	Page int

	// FontSize is the reported font size in points.
	FontSize float64

	// Bold reports whether the span was rendered bold.
	Bold bool

	// BBox is the optional bounding box (x0, y0, x1, y1) in page units.
	// Nil when the extractor does not report geometry.
	BBox []float64
}

// RawAsset is a cropped table or figure image reported by the extraction
// capability.
type RawAsset struct {
	// Page is the 1-based page number the asset was cropped from.
	Page int

	// Kind classifies the asset.
	Kind domain.AssetKind

	// LocalPath is where the extractor wrote the cropped image.
	LocalPath string
}

// ExtractionResult is the full output of extracting one PDF.
type ExtractionResult struct {
	// PageCount is the number of pages in the document.
	PageCount int

	// Blocks are the raw text items in document order.
	Blocks []RawBlock

	// Assets are cropped tables and figures, possibly empty.
	Assets []RawAsset
}

// PDFExtractor converts raw PDF bytes into ordered raw blocks.
// A corrupt or unsupported PDF surfaces as an error wrapping
// domain.ErrExtraction; the stage records it on the document.
type PDFExtractor interface {
	// Extract parses the PDF and returns its raw blocks in document order.
	Extract(ctx context.Context, data []byte) (*ExtractionResult, error)

	// Ping validates the capability is reachable.
	Ping(ctx context.Context) error
}
