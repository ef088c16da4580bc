package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxRetries is the fixed ceiling for manual retries of a failed unit
const DefaultMaxRetries = 3

// ContentUnit is the record of one externally sourced item moving through the pipeline
type ContentUnit struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	ExternalID   string         `json:"external_id"`
	Title        string         `json:"title"`
	Status       Status         `json:"status"`
	CurrentStep  Step           `json:"current_step"`
	StepDetails  map[string]any `json:"step_details,omitempty"`
	ErrorDetails *ErrorDetails  `json:"error_details,omitempty"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CanRetry reports whether another manual retry is allowed
func (u *ContentUnit) CanRetry() bool {
	return u.RetryCount < u.MaxRetries
}

// Clone returns a deep copy safe to hand out of a store
func (u *ContentUnit) Clone() *ContentUnit {
	if u == nil {
		return nil
	}
	c := *u
	if u.StepDetails != nil {
		c.StepDetails = make(map[string]any, len(u.StepDetails))
		for k, v := range u.StepDetails {
			c.StepDetails[k] = v
		}
	}
	if u.ErrorDetails != nil {
		e := *u.ErrorDetails
		c.ErrorDetails = &e
	}
	return &c
}

// ErrorDetails is the persisted form of a classified failure
type ErrorDetails struct {
	Subsystem       string    `json:"subsystem"`
	Kind            string    `json:"kind"`
	Message         string    `json:"message"`
	UserMessage     string    `json:"user_message"`
	SuggestedAction string    `json:"suggested_action"`
	Retryable       bool      `json:"retryable"`
	Provider        string    `json:"provider,omitempty"`
	FailedStep      Step      `json:"failed_step,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// TranscriptType tags where a transcript came from
type TranscriptType string

const (
	TranscriptAuto            TranscriptType = "auto"
	TranscriptWhisperFallback TranscriptType = "whisper-fallback"
)

// Segment is one timed piece of transcript text, times in seconds
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript belongs to exactly one content unit
type Transcript struct {
	ID            string         `json:"id"`
	UnitID        string         `json:"unit_id"`
	RawText       string         `json:"raw_text"`
	ProcessedText string         `json:"processed_text"`
	Segments      []Segment      `json:"segments"`
	Type          TranscriptType `json:"transcript_type"`
	Language      string         `json:"language"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Topic is a theme extracted from transcript content
type Topic struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Frequency   int      `json:"frequency"`
	Keywords    []string `json:"keywords"`
}

// TopicRelationship links a parent topic to one of its subtopics
type TopicRelationship struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// AnalysisResult belongs to exactly one content unit
type AnalysisResult struct {
	ID           string        `json:"id"`
	UnitID       string        `json:"unit_id"`
	Title        string        `json:"title"`
	Summary      string        `json:"summary"`
	KeyPoints    []string      `json:"key_points"`
	Topics       []Topic       `json:"topics,omitempty"`
	Confidence   float64       `json:"confidence"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	ElapsedTime  time.Duration `json:"elapsed_time"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ItemMetadata describes one external media item
type ItemMetadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at"`
	Duration     string    `json:"duration,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Privacy      string    `json:"privacy,omitempty"`
	IsLive       bool      `json:"is_live"`
}

// ContainerMetadata describes a channel or playlist holding many items
type ContainerMetadata struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	UploadsPlaylistID string `json:"uploads_playlist_id,omitempty"`
	ItemCount         int    `json:"item_count"`
}

// SummaryLength tunes how long a generated summary should be
type SummaryLength int

const (
	SummaryMedium SummaryLength = iota
	SummaryShort
	SummaryLong
)

// String returns the string representation of SummaryLength
func (l SummaryLength) String() string {
	switch l {
	case SummaryShort:
		return "short"
	case SummaryMedium:
		return "medium"
	case SummaryLong:
		return "long"
	default:
		return "unknown"
	}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (l *SummaryLength) UnmarshalText(text []byte) error {
	parsed, err := ParseSummaryLength(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface
func (l SummaryLength) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ParseSummaryLength converts a string into a SummaryLength, empty means medium
func ParseSummaryLength(value string) (SummaryLength, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "medium":
		return SummaryMedium, nil
	case "short":
		return SummaryShort, nil
	case "long":
		return SummaryLong, nil
	default:
		return SummaryMedium, fmt.Errorf("invalid summary length: %s, must be one of: short, medium, long", value)
	}
}

// SummaryFocus tunes what a generated summary emphasizes
type SummaryFocus int

const (
	FocusOverview SummaryFocus = iota
	FocusKeyPoints
	FocusActionable
)

// String returns the string representation of SummaryFocus
func (f SummaryFocus) String() string {
	switch f {
	case FocusOverview:
		return "overview"
	case FocusKeyPoints:
		return "key_points"
	case FocusActionable:
		return "actionable"
	default:
		return "unknown"
	}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (f *SummaryFocus) UnmarshalText(text []byte) error {
	parsed, err := ParseSummaryFocus(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface
func (f SummaryFocus) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ParseSummaryFocus converts a string into a SummaryFocus, empty means overview
func ParseSummaryFocus(value string) (SummaryFocus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "overview":
		return FocusOverview, nil
	case "key_points", "key-points", "keypoints":
		return FocusKeyPoints, nil
	case "actionable":
		return FocusActionable, nil
	default:
		return FocusOverview, fmt.Errorf("invalid summary focus: %s, must be one of: overview, key_points, actionable", value)
	}
}
