package driven

import (
	"context"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

// CompleteOptions configures a completion request.
type CompleteOptions struct {
	// MaxTokens limits the response length (0 = provider default).
	MaxTokens int

	// Temperature controls randomness (0.0-1.0).
	Temperature float64
}

// CompletionService produces text completions from a prompt.
// This is an optional service: when nil, answer generation is disabled and
// asking a question returns ranked chunks only.
type CompletionService interface {
	// Complete produces a text completion for the prompt.
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// AssetCaption is the captioning output for one asset.
type AssetCaption struct {
	// Caption is a short description of the figure or table.
	Caption string

	// TableContent holds the table body as markdown, empty for figures.
	TableContent string
}

// CaptionService describes tables and figures from their cropped images.
// This is an optional service: when nil, the captioning stage is skipped.
type CaptionService interface {
	// CaptionImage describes the image at path. Tables additionally get
	// structured markdown content.
	CaptionImage(ctx context.Context, path string, kind domain.AssetKind) (*AssetCaption, error)

	// Close releases resources.
	Close() error
}
