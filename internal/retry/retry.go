// Package retry re-runs the pipeline of failed content units, bounded by a
// per-unit retry ceiling.
package retry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/internal/orchestrator"
	"media-digest-go/internal/store"
)

// Rejections returned by Retry
var (
	ErrUnitNotFound      = errors.New("unit not found")
	ErrMaxRetriesReached = errors.New("maximum retries reached")
	ErrNotRetryable      = errors.New("unit is not in a failed state")
	ErrUnitBusy          = orchestrator.ErrUnitBusy
)

// Reprocessor re-runs the pipeline of an existing unit. Claim holds off
// pipeline runs of the unit while a retry is being booked.
type Reprocessor interface {
	Claim(unitID string) (release func(), ok bool)
	Reprocess(ctx context.Context, unitID string, opts orchestrator.Options) (*orchestrator.Result, error)
}

// Outcome is an accepted retry and the result of the re-run
type Outcome struct {
	UnitID     string               `json:"unit_id"`
	RetryCount int                  `json:"retry_count"`
	MaxRetries int                  `json:"max_retries"`
	CanRetry   bool                 `json:"can_retry"`
	Result     *orchestrator.Result `json:"result"`
}

// Controller accepts or rejects manual retries
type Controller struct {
	store      store.Store
	runner     Reprocessor
	maxRetries int
	logger     *zap.Logger
}

// New creates a controller. maxRetries is the ceiling for units that carry
// none of their own; <= 0 uses the default of 3.
func New(s store.Store, runner Reprocessor, maxRetries int, logger *zap.Logger) *Controller {
	if maxRetries <= 0 {
		maxRetries = model.DefaultMaxRetries
	}
	return &Controller{
		store:      s,
		runner:     runner,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// ceiling is the retry limit of unit, set when the unit was created
func (c *Controller) ceiling(unit *model.ContentUnit) int {
	if unit.MaxRetries > 0 {
		return unit.MaxRetries
	}
	return c.maxRetries
}

// Retry bumps the retry counter of a failed unit and re-runs its pipeline.
// The check and the increment are one atomic store operation, so concurrent
// calls on the same unit accept at most one. A unit whose run is still in
// flight is rejected with ErrUnitBusy and stays failed.
func (c *Controller) Retry(ctx context.Context, unitID string, opts orchestrator.Options) (*Outcome, error) {
	unit, err := c.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, c.lookupError(unitID, err)
	}
	maxRetries := c.ceiling(unit)
	if unit.RetryCount >= maxRetries {
		return nil, fmt.Errorf("%w: unit %s has been retried %d times", ErrMaxRetriesReached, unitID, unit.RetryCount)
	}
	if unit.CurrentStep != model.StepFailed {
		return nil, fmt.Errorf("%w: unit %s is %s", ErrNotRetryable, unitID, unit.CurrentStep)
	}

	release, ok := c.runner.Claim(unitID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitBusy, unitID)
	}
	allowed, err := c.store.IncrementRetryCount(ctx, unitID, maxRetries)
	release()
	if err != nil {
		return nil, c.lookupError(unitID, err)
	}
	if !allowed {
		// lost a race with another retry; report what the unit looks like now
		current, err := c.store.GetUnit(ctx, unitID)
		if err != nil {
			return nil, c.lookupError(unitID, err)
		}
		if current.RetryCount >= c.ceiling(current) {
			return nil, fmt.Errorf("%w: unit %s has been retried %d times", ErrMaxRetriesReached, unitID, current.RetryCount)
		}
		return nil, fmt.Errorf("%w: unit %s is %s", ErrNotRetryable, unitID, current.CurrentStep)
	}

	retryCount := unit.RetryCount + 1
	c.logger.Info("Retrying unit",
		zap.String("unit_id", unitID),
		zap.String("external_id", unit.ExternalID),
		zap.Int("retry", retryCount),
		zap.Int("max_retries", maxRetries))

	result, err := c.runner.Reprocess(ctx, unitID, opts)
	if err != nil {
		return nil, fmt.Errorf("reprocessing unit %s: %w", unitID, err)
	}

	outcome := &Outcome{
		UnitID:     unitID,
		RetryCount: retryCount,
		MaxRetries: maxRetries,
		CanRetry:   result.Status == orchestrator.StatusFailed && retryCount < maxRetries,
		Result:     result,
	}
	result.CanRetry = outcome.CanRetry
	return outcome, nil
}

func (c *Controller) lookupError(unitID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}
	return err
}
