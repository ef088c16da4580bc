package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-digest-go/internal/model"
)

type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string       { return e.msg }
func (e statusErr) HTTPStatusCode() int { return e.code }

func TestClassifyLLM(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"429", statusErr{429, "slow down"}, KindRateLimit, true},
		{"429 quota", statusErr{429, "You exceeded your current quota"}, KindQuotaExceeded, true},
		{"401", statusErr{401, "nope"}, KindAPIKeyInvalid, false},
		{"504", statusErr{504, "gateway"}, KindTimeout, true},
		{"context", errors.New("This model's maximum context length is 128000 tokens"), KindContextTooLong, false},
		{"tokens", errors.New("finish reason max_tokens"), KindTokenLimit, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout, true},
		{"other", errors.New("boom"), KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(SubsystemLLM, tt.err)
			require.NotNil(t, c)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.retryable, c.Retryable)
			assert.NotEmpty(t, c.UserMessage)
			assert.NotEmpty(t, c.SuggestedAction)
		})
	}
}

func TestClassifyTranscript(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"no captions", fmt.Errorf("video abc: %w", ErrNoCaptions), KindNoCaptions},
		{"private", ErrPrivate, KindVideoPrivate},
		{"not found", ErrNotFound, KindVideoNotFound},
		{"language", ErrLanguageUnsupported, KindLanguageUnsupported},
		{"whisper", fmt.Errorf("whisper: %w", ErrTranscriptionFailed), KindTranscriptionFailed},
		{"5xx", statusErr{503, "unavailable"}, KindProviderError},
		{"404 status", statusErr{404, "gone"}, KindVideoNotFound},
		{"other", errors.New("weird"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(SubsystemTranscript, tt.err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.False(t, c.Retryable)
		})
	}
}

func TestClassifyMetadata(t *testing.T) {
	assert.Equal(t, KindQuotaExceeded, Classify(SubsystemMetadata, ErrQuotaExceeded).Kind)
	assert.Equal(t, KindQuotaExceeded, Classify(SubsystemMetadata, statusErr{403, "quotaExceeded"}).Kind)
	assert.Equal(t, KindItemNotFound, Classify(SubsystemMetadata, statusErr{404, "x"}).Kind)
	assert.Equal(t, KindItemPrivate, Classify(SubsystemMetadata, ErrPrivate).Kind)
	assert.Equal(t, KindContainerNotFound, Classify(SubsystemMetadata, ErrContainerNotFound).Kind)
	assert.Equal(t, KindAPIKeyInvalid, Classify(SubsystemMetadata, statusErr{400, "API key not valid"}).Kind)
	assert.Equal(t, KindUnknown, Classify(SubsystemMetadata, errors.New("x")).Kind)
}

func TestClassifyIsDeterministicAndPassesThrough(t *testing.T) {
	assert.Nil(t, Classify(SubsystemLLM, nil))

	err := statusErr{429, "slow down"}
	first := Classify(SubsystemLLM, err)
	second := Classify(SubsystemLLM, err)
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.UserMessage, second.UserMessage)
	assert.Equal(t, 429, first.StatusCode)

	wrapped := fmt.Errorf("outer: %w", first)
	assert.Same(t, first, Classify(SubsystemTranscript, wrapped))
}

func TestDetails(t *testing.T) {
	c := New(SubsystemTranscript, KindNoCaptions, ErrNoCaptions).WithProvider("youtube")
	details := c.Details(model.StepExtractingTranscript)

	assert.Equal(t, "transcript", details.Subsystem)
	assert.Equal(t, "no_captions", details.Kind)
	assert.Equal(t, "youtube", details.Provider)
	assert.Equal(t, model.StepExtractingTranscript, details.FailedStep)
	assert.False(t, details.Retryable)
	assert.False(t, details.OccurredAt.IsZero())
	assert.ErrorIs(t, c, ErrNoCaptions)
}
