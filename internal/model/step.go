package model

import "fmt"

// Step is one stage of the per-unit pipeline state machine
type Step string

const (
	StepPending              Step = "pending"
	StepFetchingMetadata     Step = "fetching_metadata"
	StepExtractingTranscript Step = "extracting_transcript"
	StepAIProcessing         Step = "ai_processing"
	StepSavingData           Step = "saving_data"
	StepCompleted            Step = "completed"
	StepFailed               Step = "failed"
)

// happyPath lists the non-failure steps in execution order
var happyPath = []Step{
	StepPending,
	StepFetchingMetadata,
	StepExtractingTranscript,
	StepAIProcessing,
	StepSavingData,
	StepCompleted,
}

// AllSteps returns every defined step value
func AllSteps() []Step {
	steps := make([]Step, 0, len(happyPath)+1)
	steps = append(steps, happyPath...)
	return append(steps, StepFailed)
}

// String returns the string representation of Step
func (s Step) String() string {
	return string(s)
}

// Valid reports whether s is one of the defined steps
func (s Step) Valid() bool {
	return s == StepFailed || s.position() >= 0
}

// IsTerminal reports whether no automatic transition may follow s
func (s Step) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
// The happy path advances one position at a time, failed is reachable from any
// non-terminal step, and pending may only be re-entered from failed.
func (s Step) CanTransitionTo(next Step) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if next == StepFailed {
		return !s.IsTerminal()
	}
	if next == StepPending {
		return s == StepFailed
	}
	from := s.position()
	return from >= 0 && s != StepCompleted && next.position() == from+1
}

func (s Step) position() int {
	for i, step := range happyPath {
		if step == s {
			return i
		}
	}
	return -1
}

// Status returns the coarse processing status for the step
func (s Step) Status() Status {
	switch s {
	case StepPending:
		return StatusPending
	case StepCompleted:
		return StatusCompleted
	case StepFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (s *Step) UnmarshalText(text []byte) error {
	step, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = step
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// ParseStep converts a string into a Step
func ParseStep(value string) (Step, error) {
	step := Step(value)
	if !step.Valid() {
		return "", fmt.Errorf("unknown step: %q", value)
	}
	return step, nil
}

// Status is the coarse processing status of a content unit
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)
