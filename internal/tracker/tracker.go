// Package tracker records the pipeline step of each content unit.
package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/internal/store"
)

// StepStartedKey is the step detail holding the time the step was entered
const StepStartedKey = "step_started_at"

// Tracker persists and reads the current step of a content unit. It does
// not validate transitions.
type Tracker struct {
	store              store.Store
	retainErrorDetails bool
	logger             *zap.Logger
	now                func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithRetainedErrorDetails keeps previously stored error details when a unit
// moves to a non-failed step instead of clearing them
func WithRetainedErrorDetails(retain bool) Option {
	return func(t *Tracker) {
		t.retainErrorDetails = retain
	}
}

// New creates a Tracker on top of a content store
func New(s store.Store, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  s,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StepState is what ReadStep returns
type StepState struct {
	Step         model.Step
	Details      map[string]any
	ErrorDetails *model.ErrorDetails
	RetryCount   int
	CanRetry     bool
	UpdatedAt    time.Time
}

// RecordStep replaces the step and details of a unit. errInfo is written only
// when step is failed.
func (t *Tracker) RecordStep(ctx context.Context, unitID string, step model.Step, details map[string]any, errInfo *model.ErrorDetails) error {
	payload := make(map[string]any, len(details)+1)
	for k, v := range details {
		payload[k] = v
	}
	payload[StepStartedKey] = t.now().Format(time.RFC3339Nano)

	update := store.StepUpdate{
		UnitID:  unitID,
		Step:    step,
		Details: payload,
	}
	if step == model.StepFailed {
		update.ErrorDetails = errInfo
	} else {
		update.ClearError = !t.retainErrorDetails
	}

	if err := t.store.UpdateStep(ctx, update); err != nil {
		return fmt.Errorf("record step %s: %w", step, err)
	}

	t.logger.Debug("Step recorded",
		zap.String("unit_id", unitID),
		zap.String("step", step.String()))

	return nil
}

// ReadStep returns the stored step state of a unit
func (t *Tracker) ReadStep(ctx context.Context, unitID string) (*StepState, error) {
	unit, err := t.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("read step: %w", err)
	}

	return &StepState{
		Step:         unit.CurrentStep,
		Details:      unit.StepDetails,
		ErrorDetails: unit.ErrorDetails,
		RetryCount:   unit.RetryCount,
		CanRetry:     unit.CanRetry(),
		UpdatedAt:    unit.UpdatedAt,
	}, nil
}
