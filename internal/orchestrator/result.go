package orchestrator

import (
	"time"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/llm"
	"media-digest-go/internal/model"
)

// Status is the outcome of one orchestrator run
type Status string

const (
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusAlreadyExists Status = "already_exists"
)

// Options are the analysis options shared by a run
type Options struct {
	SummaryLength     model.SummaryLength
	SummaryFocus      model.SummaryFocus
	ExtractTopics     bool
	PreferredProvider string
}

func (o Options) summaryOptions() llm.SummaryOptions {
	return llm.SummaryOptions{
		Length:            o.SummaryLength,
		Focus:             o.SummaryFocus,
		IncludeTopics:     o.ExtractTopics,
		PreferredProvider: o.PreferredProvider,
	}
}

// Request submits one external item
type Request struct {
	ExternalID string

	// Metadata skips the metadata lookup when the caller already has it,
	// as the batch coordinator does for expanded containers
	Metadata *model.ItemMetadata

	Options Options
}

// Result is the per-unit outcome. Failures are reported here, never as a
// returned error.
type Result struct {
	UnitID         string                `json:"unit_id"`
	ExternalID     string                `json:"external_id"`
	Title          string                `json:"title"`
	Status         Status                `json:"status"`
	Step           model.Step            `json:"step"`
	FailedStep     model.Step            `json:"failed_step,omitempty"`
	TranscriptType model.TranscriptType  `json:"transcript_type,omitempty"`
	Analysis       *model.AnalysisResult `json:"analysis,omitempty"`
	EstimatedCost  float64               `json:"estimated_cost"`
	Cost           float64               `json:"cost"`
	RetryCount     int                   `json:"retry_count"`
	CanRetry       bool                  `json:"can_retry"`
	Error          *classify.Error       `json:"-"`
	Duration       time.Duration         `json:"duration"`
}

// ErrorMessage returns the failure message or ""
func (r *Result) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}
