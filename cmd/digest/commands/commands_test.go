package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-digest-go/internal/batch"
	"media-digest-go/internal/model"
	"media-digest-go/internal/orchestrator"
)

func TestAnalysisOptions(t *testing.T) {
	cmd := NewIngestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--length", "short", "--focus", "actionable", "--topics", "--provider", "gemini", "--max-items", "7"}))

	opts, err := batchOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, model.SummaryShort, opts.SummaryLength)
	assert.Equal(t, model.FocusActionable, opts.SummaryFocus)
	assert.True(t, opts.ExtractTopics)
	assert.Equal(t, "gemini", opts.PreferredProvider)
	assert.Equal(t, 7, opts.MaxItemsPerContainer)
}

func TestAnalysisOptionsDefaults(t *testing.T) {
	cmd := NewRetryCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	opts, err := analysisOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Options{SummaryLength: model.SummaryMedium, SummaryFocus: model.FocusOverview}, opts)
}

func TestAnalysisOptionsRejectsUnknownValues(t *testing.T) {
	cmd := NewIngestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--length", "epic"}))
	_, err := analysisOptions(cmd)
	assert.Error(t, err)

	cmd = NewIngestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--focus", "everything"}))
	_, err = analysisOptions(cmd)
	assert.Error(t, err)

	cmd = NewIngestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--provider", "claude"}))
	_, err = analysisOptions(cmd)
	assert.Error(t, err)

	cmd = NewIngestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--max-items", "-1"}))
	_, err = batchOptions(cmd)
	assert.Error(t, err)
}

func TestMaxConcurrent(t *testing.T) {
	cmd := NewWatchCommand()
	require.NoError(t, cmd.ParseFlags(nil))
	n, err := maxConcurrent(cmd)
	require.NoError(t, err)
	assert.Zero(t, n)

	cmd = NewIngestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--max-concurrent", "5"}))
	n, err = maxConcurrent(cmd)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	cmd = NewIngestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--max-concurrent", "51"}))
	_, err = maxConcurrent(cmd)
	assert.Error(t, err)
}

func TestBatchError(t *testing.T) {
	assert.NoError(t, batchError(&batch.Result{}))
	assert.NoError(t, batchError(&batch.Result{
		Processed: []*orchestrator.Result{{Status: orchestrator.StatusCompleted}},
		Errors:    []batch.ItemError{{Kind: "no_captions"}},
	}))
	assert.Error(t, batchError(&batch.Result{Errors: []batch.ItemError{{Kind: "no_captions"}}}))
}

func TestLoggerFrom(t *testing.T) {
	_, err := loggerFrom(context.Background())
	assert.Error(t, err)

	logger := zap.NewNop()
	got, err := loggerFrom(context.WithValue(context.Background(), "logger", logger))
	require.NoError(t, err)
	assert.Same(t, logger, got)
}
