package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatus_Valid(t *testing.T) {
	for _, s := range []DocumentStatus{StatusPending, StatusParsed, StatusCaptioned, StatusChunked} {
		assert.True(t, s.Valid(), "status %s should be valid", s)
	}
	assert.False(t, DocumentStatus("processing").Valid())
	assert.False(t, DocumentStatus("").Valid())
}

func TestDocumentStatus_AtLeast(t *testing.T) {
	assert.True(t, StatusChunked.AtLeast(StatusPending))
	assert.True(t, StatusParsed.AtLeast(StatusParsed))
	assert.False(t, StatusPending.AtLeast(StatusParsed))
	assert.False(t, StatusCaptioned.AtLeast(StatusChunked))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		current DocumentStatus
		stage   Stage
		want    DocumentStatus
		wantErr error
	}{
		{
			name:    "structuring from pending",
			current: StatusPending,
			stage:   StageStructuring,
			want:    StatusParsed,
		},
		{
			name:    "captioning from parsed",
			current: StatusParsed,
			stage:   StageCaptioning,
			want:    StatusCaptioned,
		},
		{
			name:    "chunking from parsed skips captioning",
			current: StatusParsed,
			stage:   StageChunkEmbed,
			want:    StatusChunked,
		},
		{
			name:    "chunking from captioned",
			current: StatusCaptioned,
			stage:   StageChunkEmbed,
			want:    StatusChunked,
		},
		{
			name:    "captioning before structuring",
			current: StatusPending,
			stage:   StageCaptioning,
			wantErr: ErrPrerequisiteNotMet,
		},
		{
			name:    "chunking before structuring",
			current: StatusPending,
			stage:   StageChunkEmbed,
			wantErr: ErrPrerequisiteNotMet,
		},
		{
			name:    "re-running structuring never regresses",
			current: StatusChunked,
			stage:   StageStructuring,
			want:    StatusChunked,
		},
		{
			name:    "re-running captioning from chunked keeps chunked",
			current: StatusChunked,
			stage:   StageCaptioning,
			want:    StatusChunked,
		},
		{
			name:    "unknown stage",
			current: StatusParsed,
			stage:   Stage("publish"),
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "unknown status",
			current: DocumentStatus("weird"),
			stage:   StageStructuring,
			wantErr: ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.current, tt.stage)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStage_Accessors(t *testing.T) {
	assert.Equal(t, StatusPending, StageStructuring.Prerequisite())
	assert.Equal(t, StatusParsed, StageStructuring.Success())
	assert.Equal(t, StatusParsed, StageChunkEmbed.Prerequisite())
	assert.Equal(t, StatusChunked, StageChunkEmbed.Success())
}
