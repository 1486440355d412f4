package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
)

// stubRegister records registered files and returns deterministic IDs.
type stubRegister struct {
	mu       sync.Mutex
	ingested []string
	err      error
}

func (s *stubRegister) Register(_ context.Context, filename string, _ []byte, _ driving.RegisterMetadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.ingested = append(s.ingested, filename)
	return fmt.Sprintf("doc-%d", len(s.ingested)), nil
}

func (s *stubRegister) Delete(context.Context, string) error { return nil }

func (s *stubRegister) filenames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ingested...)
}

// stubPipeline succeeds structuring unless err is set.
type stubPipeline struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (s *stubPipeline) RunStructuring(_ context.Context, documentID string) (*driving.StageReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, documentID)
	return &driving.StageReport{DocumentID: documentID, Err: s.err}, nil
}

func (s *stubPipeline) RunCaptioning(context.Context, string, bool) (*driving.StageReport, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPipeline) RunChunkAndEmbed(context.Context, string, bool) (*driving.StageReport, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPipeline) RunChunkAndEmbedAll(context.Context, bool) ([]driving.StageReport, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPipeline) Status(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (s *stubPipeline) List(context.Context) ([]domain.Document, error) { return nil, nil }

func (s *stubPipeline) structured() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.runs...)
}

func TestNew_RequiresInbox(t *testing.T) {
	_, err := New("", &stubRegister{}, &stubPipeline{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/inbox/rapport.pdf", true},
		{"/inbox/RAPPORT.PDF", true},
		{"/inbox/.rapport.pdf", false},
		{"/inbox/.DS_Store", false},
		{"/inbox/notes.txt", false},
		{"/inbox/rapport.pdf.part", false},
		{"/inbox/rapport", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isCandidate(tt.path))
		})
	}
}

func TestRun_IngestsExistingFiles(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "rapport.pdf"), []byte("%PDF-1.7"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("pas un pdf"), 0600))

	register := &stubRegister{}
	pipeline := &stubPipeline{}
	w, err := New(inbox, register, pipeline, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(register.filenames()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []string{"rapport.pdf"}, register.filenames())
	assert.Equal(t, []string{"doc-1"}, pipeline.structured())

	// The ingested file is removed; the non-candidate stays.
	_, err = os.Stat(filepath.Join(inbox, "rapport.pdf"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(inbox, "notes.txt"))
	assert.NoError(t, err)
}

func TestRun_IngestsDroppedFileAfterQuietPeriod(t *testing.T) {
	inbox := t.TempDir()

	register := &stubRegister{}
	pipeline := &stubPipeline{}
	w, err := New(inbox, register, pipeline, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watch a moment to attach, then drop a file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "etude.pdf"), []byte("%PDF-1.7"), 0600))

	require.Eventually(t, func() bool {
		return len(register.filenames()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []string{"etude.pdf"}, register.filenames())
}

func TestRun_KeepsFileOnStructuringFailure(t *testing.T) {
	inbox := t.TempDir()
	path := filepath.Join(inbox, "rapport.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0600))

	register := &stubRegister{}
	pipeline := &stubPipeline{err: errors.New("sidecar down")}
	w, err := New(inbox, register, pipeline, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(pipeline.structured()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// Registration happened, but the inbox file stays for retry.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRun_LeavesInvalidFileInPlace(t *testing.T) {
	inbox := t.TempDir()
	path := filepath.Join(inbox, "corrompu.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pas un pdf"), 0600))

	register := &stubRegister{err: fmt.Errorf("%w: missing PDF header", domain.ErrIntegrity)}
	pipeline := &stubPipeline{}
	w, err := New(inbox, register, pipeline, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	assert.Empty(t, pipeline.structured())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
