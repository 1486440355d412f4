package services

import (
	"context"
	"fmt"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/splitter"
)

// Ensure Pipeline implements the interface.
var _ driving.PipelineService = (*Pipeline)(nil)

// Pipeline is the facade over the three processing stages. All stages share
// one runner, so overlapping runs against a single document are rejected
// with ErrConcurrencyConflict regardless of stage.
type Pipeline struct {
	store       driven.DocumentStore
	structuring *StructuringService
	captioning  *CaptioningService
	chunkEmbed  *ChunkEmbedService
}

// NewPipeline assembles the stage services over a shared store and runner.
func NewPipeline(
	store driven.DocumentStore,
	extractor driven.PDFExtractor,
	captions driven.CaptionService,
	embedder driven.EmbeddingService,
	split *splitter.Splitter,
	opts ...ChunkEmbedOption,
) *Pipeline {
	runner := newStageRunner(store)
	return &Pipeline{
		store:       store,
		structuring: NewStructuringService(store, extractor, runner),
		captioning:  NewCaptioningService(store, captions, runner),
		chunkEmbed:  NewChunkEmbedService(store, embedder, split, runner, opts...),
	}
}

// RunStructuring extracts and structures the document's text blocks.
func (p *Pipeline) RunStructuring(ctx context.Context, documentID string) (*driving.StageReport, error) {
	return p.structuring.Run(ctx, documentID)
}

// RunCaptioning captions the document's pending assets.
func (p *Pipeline) RunCaptioning(ctx context.Context, documentID string, overwrite bool) (*driving.StageReport, error) {
	return p.captioning.Run(ctx, documentID, overwrite)
}

// RunChunkAndEmbed splits, embeds and stores the document's chunks.
func (p *Pipeline) RunChunkAndEmbed(ctx context.Context, documentID string, overwrite bool) (*driving.StageReport, error) {
	return p.chunkEmbed.Run(ctx, documentID, overwrite)
}

// RunChunkAndEmbedAll processes every eligible document independently.
func (p *Pipeline) RunChunkAndEmbedAll(ctx context.Context, overwrite bool) ([]driving.StageReport, error) {
	return p.chunkEmbed.RunAll(ctx, overwrite)
}

// Status returns the document's current pipeline state.
func (p *Pipeline) Status(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns all registered documents.
func (p *Pipeline) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := p.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
