package transcript

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/model"
)

// Provider names used when attributing failures
const (
	ProviderCaptions = "captions"
	ProviderAudio    = "audio"
)

// Acquirer runs the caption path and falls back to audio transcription
type Acquirer struct {
	captions CaptionSource
	fallback AudioTranscriber
	logger   *zap.Logger
}

// NewAcquirer creates an acquisition chain. A nil fallback means the audio
// path is not configured.
func NewAcquirer(captions CaptionSource, fallback AudioTranscriber, logger *zap.Logger) *Acquirer {
	if fallback == nil {
		fallback = Unavailable{}
	}
	return &Acquirer{
		captions: captions,
		fallback: fallback,
		logger:   logger,
	}
}

// Acquire returns the transcript of itemID. When both paths fail the returned
// *classify.Error carries the caption path's kind with both messages.
func (a *Acquirer) Acquire(ctx context.Context, itemID string) (*Result, error) {
	fetched, err := a.captions.FetchCaptions(ctx, itemID)
	if err == nil {
		return newResult(fetched, model.TranscriptAuto), nil
	}

	primary := classify.Classify(classify.SubsystemTranscript, err).WithProvider(ProviderCaptions)
	a.logger.Warn("Caption extraction failed, trying audio fallback",
		zap.String("item_id", itemID),
		zap.String("kind", string(primary.Kind)),
		zap.Error(err))

	fetched, fallbackErr := a.fallback.Transcribe(ctx, itemID)
	if fallbackErr == nil {
		a.logger.Info("Audio fallback produced a transcript",
			zap.String("item_id", itemID),
			zap.Int("segments", len(fetched.Segments)))
		return newResult(fetched, model.TranscriptWhisperFallback), nil
	}

	secondary := classify.Classify(classify.SubsystemTranscript, fallbackErr)
	a.logger.Warn("Audio fallback failed",
		zap.String("item_id", itemID),
		zap.String("kind", string(secondary.Kind)),
		zap.Error(fallbackErr))

	return nil, aggregate(primary, secondary, err, fallbackErr)
}

// aggregate keeps the primary classification and annotates it with both
// underlying messages
func aggregate(primary, secondary *classify.Error, primaryErr, secondaryErr error) *classify.Error {
	combined := *primary
	combined.Message = fmt.Sprintf("captions: %s; audio fallback: %s", primary.Message, secondary.Message)
	combined.Cause = errors.Join(primaryErr, secondaryErr)
	return &combined
}
