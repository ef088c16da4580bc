// Package store persists content units, transcripts and analysis results.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/pkg/config"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// Store is the content store consumed by the pipeline
type Store interface {
	// CreateUnitIfAbsent inserts unit unless a unit with the same
	// (source, external_id) exists. It returns the stored unit and whether
	// this call created it.
	CreateUnitIfAbsent(ctx context.Context, unit *model.ContentUnit) (*model.ContentUnit, bool, error)
	GetUnit(ctx context.Context, id string) (*model.ContentUnit, error)
	GetUnitByExternalID(ctx context.Context, source, externalID string) (*model.ContentUnit, error)
	ListUnits(ctx context.Context, filter ListFilter) ([]*model.ContentUnit, error)
	UpdateStep(ctx context.Context, update StepUpdate) error
	UpdateTitle(ctx context.Context, id, title string) error

	// IncrementRetryCount atomically bumps the retry counter of a failed unit
	// whose count is below maxRetries, resetting it to pending with cleared
	// error details. It reports false when the unit is not eligible.
	IncrementRetryCount(ctx context.Context, id string, maxRetries int) (bool, error)

	SaveTranscript(ctx context.Context, transcript *model.Transcript) error
	GetTranscript(ctx context.Context, unitID string) (*model.Transcript, error)
	SaveAnalysis(ctx context.Context, analysis *model.AnalysisResult) error
	GetAnalysis(ctx context.Context, unitID string) (*model.AnalysisResult, error)

	Close() error
}

// StepUpdate replaces the step state of a unit
type StepUpdate struct {
	UnitID  string
	Step    model.Step
	Details map[string]any

	// ErrorDetails is written when set. Otherwise the stored error details
	// are cleared if ClearError is true and left untouched if not.
	ErrorDetails *model.ErrorDetails
	ClearError   bool
}

// ListFilter narrows ListUnits
type ListFilter struct {
	Source string
	Step   model.Step
	Limit  int
	Offset int
}

// Error represents a content store operation error
type Error struct {
	Op      string
	UnitID  string
	Backend string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.UnitID == "" {
		return fmt.Sprintf("store error [%s] during %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("store error [%s] during %s on unit %s: %v", e.Backend, e.Op, e.UnitID, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(backend, op, unitID string, err error) *Error {
	return &Error{Op: op, UnitID: unitID, Backend: backend, Err: err}
}

// New creates the store selected by configuration
func New(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory:
		logger.Debug("Using in-memory content store")
		return NewMemoryStore(), nil
	case config.StoreBackendPostgres:
		pg, err := NewPostgresStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
