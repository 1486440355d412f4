package services

import (
	"context"
	"fmt"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
)

// maxAssetErrorLen bounds the error text stored per asset.
const maxAssetErrorLen = 2000

// CaptioningService describes the document's extracted tables and figures
// so their content can join the retrieval index as chunk context.
type CaptioningService struct {
	store    driven.DocumentStore
	captions driven.CaptionService
	runner   *stageRunner
}

// NewCaptioningService creates a captioning service. captions may be nil,
// in which case runs fail with ErrCaptioningUnavailable.
func NewCaptioningService(store driven.DocumentStore, captions driven.CaptionService, runner *stageRunner) *CaptioningService {
	return &CaptioningService{store: store, captions: captions, runner: runner}
}

// Run captions the document's pending assets. With overwrite, completed and
// failed assets are re-captioned too. A single asset failure marks that
// asset failed and continues; the stage fails only when the capability is
// missing or the context is cancelled. Success advances the document to
// captioned.
func (s *CaptioningService) Run(ctx context.Context, documentID string, overwrite bool) (*driving.StageReport, error) {
	return s.runner.run(ctx, documentID, domain.StageCaptioning, func(ctx context.Context, doc *domain.Document) (int, error) {
		return s.caption(ctx, doc, overwrite)
	})
}

// caption is the stage work function.
func (s *CaptioningService) caption(ctx context.Context, doc *domain.Document, overwrite bool) (int, error) {
	if s.captions == nil {
		return 0, domain.ErrCaptioningUnavailable
	}

	assets, err := s.store.GetAssets(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("get assets: %w", err)
	}

	captioned := 0
	for i := range assets {
		asset := &assets[i]
		if !overwrite && asset.Status != domain.AssetPending {
			continue
		}
		if err := ctx.Err(); err != nil {
			return captioned, err
		}

		result, err := s.captions.CaptionImage(ctx, asset.LocalPath, asset.Kind)
		if err != nil {
			logger.Warn("Captioning asset %s failed: %v", asset.ID, err)
			asset.Status = domain.AssetFailed
			asset.ErrorMessage = truncate(err.Error(), maxAssetErrorLen)
		} else {
			asset.Status = domain.AssetCompleted
			asset.Caption = result.Caption
			asset.TableContent = result.TableContent
			asset.ErrorMessage = ""
			captioned++
		}

		if err := s.store.UpdateAsset(ctx, asset); err != nil {
			return captioned, fmt.Errorf("update asset %s: %w", asset.ID, err)
		}
	}

	logger.Debug("Captioned %d of %d assets for %s", captioned, len(assets), doc.ID)
	return captioned, nil
}

// truncate bounds s to n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
