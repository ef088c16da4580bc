// Package transcript acquires the text of a media item: captions first,
// audio transcription as the fallback.
package transcript

import (
	"context"
	"strings"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/model"
)

// Errors raised by caption sources and transcribers
var (
	ErrNoCaptions          = classify.ErrNoCaptions
	ErrLanguageUnsupported = classify.ErrLanguageUnsupported
	ErrTranscriptionFailed = classify.ErrTranscriptionFailed
	ErrPrivate             = classify.ErrPrivate
	ErrNotFound            = classify.ErrNotFound
)

// Fetched is the raw output of one acquisition path
type Fetched struct {
	Segments []model.Segment `json:"segments"`
	Language string          `json:"language"`
	Manual   bool            `json:"manual"`
}

// CaptionSource is the primary acquisition path
type CaptionSource interface {
	FetchCaptions(ctx context.Context, itemID string) (*Fetched, error)
}

// AudioTranscriber is the secondary acquisition path
type AudioTranscriber interface {
	Transcribe(ctx context.Context, itemID string) (*Fetched, error)
}

// Result is a successfully acquired transcript
type Result struct {
	Segments      []model.Segment
	RawText       string
	ProcessedText string
	Type          model.TranscriptType
	Language      string
}

// ToModel converts the result into a transcript owned by unitID
func (r *Result) ToModel(unitID string) *model.Transcript {
	return &model.Transcript{
		UnitID:        unitID,
		RawText:       r.RawText,
		ProcessedText: r.ProcessedText,
		Segments:      r.Segments,
		Type:          r.Type,
		Language:      r.Language,
	}
}

// FromModel rebuilds a result from a stored transcript
func FromModel(t *model.Transcript) *Result {
	return &Result{
		Segments:      t.Segments,
		RawText:       t.RawText,
		ProcessedText: t.ProcessedText,
		Type:          t.Type,
		Language:      t.Language,
	}
}

// newResult normalizes segments and derives the raw and cleaned text
func newResult(fetched *Fetched, typ model.TranscriptType) *Result {
	segments := make([]model.Segment, 0, len(fetched.Segments))
	texts := make([]string, 0, len(fetched.Segments))
	for _, seg := range fetched.Segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		seg.Text = text
		segments = append(segments, seg)
		texts = append(texts, text)
	}

	raw := strings.Join(texts, " ")
	return &Result{
		Segments:      segments,
		RawText:       raw,
		ProcessedText: Clean(raw),
		Type:          typ,
		Language:      fetched.Language,
	}
}
