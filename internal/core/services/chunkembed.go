package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/splitter"
)

// Embedding batch defaults.
const (
	// DefaultBatchSize is the number of texts sent per embedding call.
	DefaultBatchSize = 100

	// DefaultMaxAttempts bounds retries of a timed-out embedding batch.
	DefaultMaxAttempts = 3

	// defaultRetryBackoff is the initial backoff between attempts; it
	// doubles per attempt.
	defaultRetryBackoff = 500 * time.Millisecond
)

// ChunkEmbedService splits a parsed document into retrieval chunks, embeds
// them and persists the result atomically.
type ChunkEmbedService struct {
	store    driven.DocumentStore
	embedder driven.EmbeddingService
	split    *splitter.Splitter
	runner   *stageRunner

	batchSize    int
	maxAttempts  int
	retryBackoff time.Duration
}

// ChunkEmbedOption configures the service.
type ChunkEmbedOption func(*ChunkEmbedService)

// WithBatchSize sets the embedding batch size.
func WithBatchSize(n int) ChunkEmbedOption {
	return func(s *ChunkEmbedService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxAttempts sets the retry bound for timed-out batches.
func WithMaxAttempts(n int) ChunkEmbedOption {
	return func(s *ChunkEmbedService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the initial retry backoff.
func WithRetryBackoff(d time.Duration) ChunkEmbedOption {
	return func(s *ChunkEmbedService) {
		if d > 0 {
			s.retryBackoff = d
		}
	}
}

// NewChunkEmbedService creates a chunk-and-embed service. embedder may be
// nil, in which case runs fail with ErrEmbeddingUnavailable.
func NewChunkEmbedService(
	store driven.DocumentStore,
	embedder driven.EmbeddingService,
	split *splitter.Splitter,
	runner *stageRunner,
	opts ...ChunkEmbedOption,
) *ChunkEmbedService {
	s := &ChunkEmbedService{
		store:        store,
		embedder:     embedder,
		split:        split,
		runner:       runner,
		batchSize:    DefaultBatchSize,
		maxAttempts:  DefaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run chunks and embeds one document. Without overwrite, a document that
// already has chunks is an idempotent no-op reported as skipped. With
// overwrite, the stored chunk set is replaced atomically: a mid-run failure
// leaves the previous set untouched.
func (s *ChunkEmbedService) Run(ctx context.Context, documentID string, overwrite bool) (*driving.StageReport, error) {
	return s.runner.run(ctx, documentID, domain.StageChunkEmbed, func(ctx context.Context, doc *domain.Document) (int, error) {
		return s.chunkAndEmbed(ctx, doc, overwrite)
	})
}

// RunAll processes every document at parsed or later independently. One
// document's failure never aborts the others.
func (s *ChunkEmbedService) RunAll(ctx context.Context, overwrite bool) ([]driving.StageReport, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var reports []driving.StageReport
	for _, doc := range docs {
		if !doc.Status.AtLeast(domain.StatusParsed) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := s.Run(ctx, doc.ID, overwrite)
		if err != nil {
			// Validation failures are isolated per document too.
			reports = append(reports, driving.StageReport{DocumentID: doc.ID, Err: err})
			continue
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// chunkAndEmbed is the stage work function.
func (s *ChunkEmbedService) chunkAndEmbed(ctx context.Context, doc *domain.Document, overwrite bool) (int, error) {
	if s.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}

	if !overwrite {
		count, err := s.store.CountChunks(ctx, doc.ID)
		if err != nil {
			return 0, fmt.Errorf("count chunks: %w", err)
		}
		if count > 0 {
			return 0, domain.ErrAlreadyProcessed
		}
	}

	units, err := s.buildUnits(ctx, doc.ID)
	if err != nil {
		return 0, err
	}

	windows := s.split.Split(units)
	if len(windows) == 0 {
		// Nothing to index; an empty replacement still clears stale
		// chunks under overwrite.
		if err := s.store.ReplaceChunks(ctx, doc.ID, nil); err != nil {
			return 0, fmt.Errorf("replace chunks: %w", err)
		}
		return 0, nil
	}

	chunks := make([]domain.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Index:      w.Index,
			Page:       w.Page,
			Text:       w.Text,
		}
	}

	// Embed all batches before touching the store: a failed batch must
	// not leave a partially replaced chunk set behind.
	want := s.embedder.Dimensions()
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := s.embedBatchWithRetry(ctx, texts)
		if err != nil {
			return 0, err
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embedding returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for i, vec := range vectors {
			if len(vec) != want {
				return 0, fmt.Errorf("%w: expected %d, got %d for model %s",
					domain.ErrDimensionMismatch, want, len(vec), s.embedder.ModelName())
			}
			chunks[start+i].Embedding = vec
		}
	}

	if err := s.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}

	logger.Info("Embedded %d chunks for %s with %s", len(chunks), doc.ID, s.embedder.ModelName())
	return len(chunks), nil
}

// embedBatchWithRetry retries timed-out batches with exponential backoff.
// All-or-nothing per batch: a partial result is never used.
func (s *ChunkEmbedService) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := s.retryBackoff

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrCapabilityTimeout) {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if attempt == s.maxAttempts {
			break
		}

		logger.Warn("Embedding batch timed out (attempt %d/%d), retrying in %s", attempt, s.maxAttempts, backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("embed batch after %d attempts: %w", s.maxAttempts, lastErr)
}

// buildUnits assembles the splitter input from the document's blocks and
// the captions of its completed assets. Asset texts are attached after the
// last block of their page, in asset order.
func (s *ChunkEmbedService) buildUnits(ctx context.Context, documentID string) ([]splitter.Unit, error) {
	blocks, err := s.store.GetBlocks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get blocks: %w", err)
	}
	assets, err := s.store.GetAssets(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get assets: %w", err)
	}

	assetTexts := make(map[int][]string)
	for _, asset := range assets {
		if asset.Status != domain.AssetCompleted {
			continue
		}
		text := assetText(asset)
		if text != "" {
			assetTexts[asset.Page] = append(assetTexts[asset.Page], text)
		}
	}

	units := make([]splitter.Unit, 0, len(blocks)+len(assets))
	for i, block := range blocks {
		units = append(units, splitter.Unit{Text: block.Text, Page: block.Page})

		lastOfPage := i == len(blocks)-1 || blocks[i+1].Page != block.Page
		if !lastOfPage {
			continue
		}
		for _, text := range assetTexts[block.Page] {
			units = append(units, splitter.Unit{Text: text, Page: block.Page})
		}
		delete(assetTexts, block.Page)
	}

	// Assets on pages without any text block still get indexed. The
	// stable sort keeps block order and moves them to their page slot so
	// chunk pages stay non-decreasing.
	if len(assetTexts) > 0 {
		pages := make([]int, 0, len(assetTexts))
		for page := range assetTexts {
			pages = append(pages, page)
		}
		sort.Ints(pages)
		for _, page := range pages {
			for _, text := range assetTexts[page] {
				units = append(units, splitter.Unit{Text: text, Page: page})
			}
		}
		sort.SliceStable(units, func(i, j int) bool { return units[i].Page < units[j].Page })
	}

	return units, nil
}

// assetText renders one completed asset as retrieval context.
func assetText(asset domain.DocumentAsset) string {
	switch {
	case asset.Caption != "" && asset.TableContent != "":
		return "Related figure/table: " + asset.Caption + "\n" + asset.TableContent
	case asset.Caption != "":
		return "Related figure/table: " + asset.Caption
	case asset.TableContent != "":
		return "Related figure/table:\n" + asset.TableContent
	}
	return ""
}
