package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
)

// stageRunner factors the cycle shared by every pipeline stage: load the
// document, check the prerequisite against the status machine, guard
// against overlapping runs, execute the stage work, then record success or
// failure on the document.
//
// Validation failures (unknown document, prerequisite not met, overlap) are
// rejected before any persistence side effect and are NOT recorded on the
// document. Failures inside the work function are recorded in ErrorMessage
// while the status stays at the failed stage's prerequisite, so a later
// retry of just that stage is safe.
type stageRunner struct {
	store driven.DocumentStore

	mu       sync.Mutex
	inFlight map[string]domain.Stage
}

// newStageRunner creates a runner over the given store.
func newStageRunner(store driven.DocumentStore) *stageRunner {
	return &stageRunner{
		store:    store,
		inFlight: make(map[string]domain.Stage),
	}
}

// stageWork executes one stage's transformation for a document and returns
// the number of records written.
type stageWork func(ctx context.Context, doc *domain.Document) (int, error)

// acquire marks a document as having an in-flight run for a stage family.
// A second concurrent run for the same document fails fast.
func (r *stageRunner) acquire(documentID string, stage domain.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if running, ok := r.inFlight[documentID]; ok {
		return fmt.Errorf("%w: document %s is running stage %s", domain.ErrConcurrencyConflict, documentID, running)
	}
	r.inFlight[documentID] = stage
	return nil
}

// release clears the in-flight mark.
func (r *stageRunner) release(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, documentID)
}

// run executes work as stage against documentID and returns the stage
// report. The returned error covers validation failures only; work failures
// are recorded on the document and surfaced in report.Err.
func (r *stageRunner) run(ctx context.Context, documentID string, stage domain.Stage, work stageWork) (*driving.StageReport, error) {
	doc, err := r.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	next, err := domain.Transition(doc.Status, stage)
	if err != nil {
		return nil, err
	}

	if err := r.acquire(documentID, stage); err != nil {
		return nil, err
	}
	defer r.release(documentID)

	logger.Stage(string(stage), documentID)

	written, workErr := work(ctx, doc)
	now := time.Now().UTC()

	if workErr != nil {
		if errors.Is(workErr, domain.ErrAlreadyProcessed) {
			logger.Debug("Stage %s skipped for %s: already processed", stage, documentID)
			return &driving.StageReport{DocumentID: documentID, Skipped: true}, nil
		}

		logger.Warn("Stage %s failed for %s: %v", stage, documentID, workErr)
		if err := r.store.UpdateStatus(ctx, documentID, doc.Status, workErr.Error(), now); err != nil {
			return nil, fmt.Errorf("record stage failure: %w", err)
		}
		return &driving.StageReport{DocumentID: documentID, Err: workErr}, nil
	}

	if err := r.store.UpdateStatus(ctx, documentID, next, "", now); err != nil {
		return nil, fmt.Errorf("advance status: %w", err)
	}

	logger.Info("Stage %s complete for %s: %d records, status %s", stage, documentID, written, next)
	return &driving.StageReport{DocumentID: documentID, ItemsWritten: written}, nil
}
