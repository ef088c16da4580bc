package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/internal/store"
)

func setup(t *testing.T, opts ...Option) (*Tracker, string) {
	s := store.NewMemoryStore()
	unit, _, err := s.CreateUnitIfAbsent(context.Background(), &model.ContentUnit{Source: "youtube", ExternalID: "abc"})
	require.NoError(t, err)
	return New(s, zap.NewNop(), opts...), unit.ID
}

func TestRecordStepReplacesDetails(t *testing.T) {
	tr, id := setup(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordStep(ctx, id, model.StepFetchingMetadata, map[string]any{"a": 1}, nil))
	require.NoError(t, tr.RecordStep(ctx, id, model.StepExtractingTranscript, map[string]any{"b": 2}, nil))

	state, err := tr.ReadStep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StepExtractingTranscript, state.Step)
	assert.Equal(t, 2, state.Details["b"])
	assert.NotContains(t, state.Details, "a")
	assert.Contains(t, state.Details, StepStartedKey)
}

func TestErrorInfoOnlyWrittenOnFailure(t *testing.T) {
	tr, id := setup(t)
	ctx := context.Background()

	failure := &model.ErrorDetails{Kind: "no_captions"}
	require.NoError(t, tr.RecordStep(ctx, id, model.StepFetchingMetadata, nil, failure))

	state, err := tr.ReadStep(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state.ErrorDetails)

	require.NoError(t, tr.RecordStep(ctx, id, model.StepFailed, nil, failure))
	state, err = tr.ReadStep(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state.ErrorDetails)
	assert.Equal(t, "no_captions", state.ErrorDetails.Kind)
	assert.True(t, state.CanRetry)
	assert.Equal(t, 0, state.RetryCount)
}

func TestErrorDetailsClearedByDefault(t *testing.T) {
	tr, id := setup(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordStep(ctx, id, model.StepFailed, nil, &model.ErrorDetails{Kind: "timeout"}))
	require.NoError(t, tr.RecordStep(ctx, id, model.StepPending, nil, nil))

	state, err := tr.ReadStep(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state.ErrorDetails)
}

func TestErrorDetailsRetained(t *testing.T) {
	tr, id := setup(t, WithRetainedErrorDetails(true))
	ctx := context.Background()

	require.NoError(t, tr.RecordStep(ctx, id, model.StepFailed, nil, &model.ErrorDetails{Kind: "timeout"}))
	require.NoError(t, tr.RecordStep(ctx, id, model.StepPending, nil, nil))

	state, err := tr.ReadStep(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state.ErrorDetails)
	assert.Equal(t, "timeout", state.ErrorDetails.Kind)
}

func TestUnknownUnit(t *testing.T) {
	tr, _ := setup(t)

	_, err := tr.ReadStep(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	err = tr.RecordStep(context.Background(), "missing", model.StepFailed, nil, nil)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
