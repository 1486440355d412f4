package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driven/storage/memory"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

func TestRunner_OverlappingRunsConflict(t *testing.T) {
	store := memory.NewDocumentStore()
	doc := seedDocument(t, store, domain.StatusParsed)
	runner := newStageRunner(store)

	started := make(chan struct{})
	release := make(chan struct{})

	// First run blocks inside the work function, holding the document's
	// in-flight slot.
	firstDone := make(chan error, 1)
	go func() {
		_, err := runner.run(context.Background(), doc.ID, domain.StageChunkEmbed, func(context.Context, *domain.Document) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		firstDone <- err
	}()

	<-started

	// A second run for the same document fails fast, whatever the stage.
	_, err := runner.run(context.Background(), doc.ID, domain.StageChunkEmbed, func(context.Context, *domain.Document) (int, error) {
		t.Error("overlapping run must not execute work")
		return 0, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))

	_, err = runner.run(context.Background(), doc.ID, domain.StageCaptioning, func(context.Context, *domain.Document) (int, error) {
		t.Error("overlapping run must not execute work")
		return 0, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))

	close(release)
	require.NoError(t, <-firstDone)

	// Once the first run finishes, the document is free again.
	report, err := runner.run(context.Background(), doc.ID, domain.StageCaptioning, func(context.Context, *domain.Document) (int, error) {
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.ItemsWritten)
}

func TestRunner_DifferentDocumentsDoNotConflict(t *testing.T) {
	store := memory.NewDocumentStore()
	first := seedDocument(t, store, domain.StatusParsed)
	second := seedDocument(t, store, domain.StatusParsed)
	runner := newStageRunner(store)

	started := make(chan struct{})
	release := make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := runner.run(context.Background(), first.ID, domain.StageChunkEmbed, func(context.Context, *domain.Document) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
		firstDone <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}

	// The guard is per document: another document proceeds normally.
	report, err := runner.run(context.Background(), second.ID, domain.StageChunkEmbed, func(context.Context, *domain.Document) (int, error) {
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.ItemsWritten)

	close(release)
	require.NoError(t, <-firstDone)
}
