package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepTransitions(t *testing.T) {
	tests := []struct {
		name     string
		from     Step
		to       Step
		expected bool
	}{
		{"pending to metadata", StepPending, StepFetchingMetadata, true},
		{"metadata to transcript", StepFetchingMetadata, StepExtractingTranscript, true},
		{"transcript to ai", StepExtractingTranscript, StepAIProcessing, true},
		{"ai to saving", StepAIProcessing, StepSavingData, true},
		{"saving to completed", StepSavingData, StepCompleted, true},
		{"skip a step", StepPending, StepAIProcessing, false},
		{"backwards", StepAIProcessing, StepFetchingMetadata, false},
		{"fail from pending", StepPending, StepFailed, true},
		{"fail from ai", StepAIProcessing, StepFailed, true},
		{"fail after completed", StepCompleted, StepFailed, false},
		{"fail after failed", StepFailed, StepFailed, false},
		{"retry re-entry", StepFailed, StepPending, true},
		{"completed to pending", StepCompleted, StepPending, false},
		{"failed to metadata", StepFailed, StepFetchingMetadata, false},
		{"unknown step", Step("bogus"), StepFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTerminalStepsHaveNoAutomaticSuccessor(t *testing.T) {
	for _, terminal := range []Step{StepCompleted, StepFailed} {
		for _, next := range AllSteps() {
			if next == StepPending {
				continue
			}
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}
}

func TestParseStep(t *testing.T) {
	for _, step := range AllSteps() {
		parsed, err := ParseStep(step.String())
		require.NoError(t, err)
		assert.Equal(t, step, parsed)
	}

	_, err := ParseStep("done")
	assert.Error(t, err)
	assert.Len(t, AllSteps(), 7)
}

func TestStepStatus(t *testing.T) {
	assert.Equal(t, StatusPending, StepPending.Status())
	assert.Equal(t, StatusProcessing, StepExtractingTranscript.Status())
	assert.Equal(t, StatusCompleted, StepCompleted.Status())
	assert.Equal(t, StatusFailed, StepFailed.Status())
}

func TestCanRetry(t *testing.T) {
	unit := &ContentUnit{MaxRetries: DefaultMaxRetries}
	assert.True(t, unit.CanRetry())

	unit.RetryCount = 3
	assert.False(t, unit.CanRetry())
}

func TestSummaryOptionParsing(t *testing.T) {
	length, err := ParseSummaryLength("LONG")
	require.NoError(t, err)
	assert.Equal(t, SummaryLong, length)

	length, err = ParseSummaryLength("")
	require.NoError(t, err)
	assert.Equal(t, SummaryMedium, length)

	_, err = ParseSummaryLength("epic")
	assert.Error(t, err)

	focus, err := ParseSummaryFocus("key-points")
	require.NoError(t, err)
	assert.Equal(t, FocusKeyPoints, focus)

	text, err := FocusActionable.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "actionable", string(text))
}
