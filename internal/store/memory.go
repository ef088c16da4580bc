package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-digest-go/internal/model"
)

const backendMemory = "memory"

// MemoryStore is a mutex-guarded in-process Store
type MemoryStore struct {
	mu          sync.RWMutex
	units       map[string]*model.ContentUnit
	byExternal  map[string]string
	transcripts map[string]*model.Transcript
	analyses    map[string]*model.AnalysisResult
	now         func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		units:       make(map[string]*model.ContentUnit),
		byExternal:  make(map[string]string),
		transcripts: make(map[string]*model.Transcript),
		analyses:    make(map[string]*model.AnalysisResult),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func externalKey(source, externalID string) string {
	return source + "\x00" + externalID
}

// CreateUnitIfAbsent implements Store
func (m *MemoryStore) CreateUnitIfAbsent(ctx context.Context, unit *model.ContentUnit) (*model.ContentUnit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := externalKey(unit.Source, unit.ExternalID)
	if id, ok := m.byExternal[key]; ok {
		return m.units[id].Clone(), false, nil
	}

	stored := unit.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CurrentStep == "" {
		stored.CurrentStep = model.StepPending
	}
	stored.Status = stored.CurrentStep.Status()
	if stored.MaxRetries == 0 {
		stored.MaxRetries = model.DefaultMaxRetries
	}
	now := m.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	m.units[stored.ID] = stored
	m.byExternal[key] = stored.ID
	return stored.Clone(), true, nil
}

// GetUnit implements Store
func (m *MemoryStore) GetUnit(ctx context.Context, id string) (*model.ContentUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unit, ok := m.units[id]
	if !ok {
		return nil, newError(backendMemory, "get_unit", id, ErrNotFound)
	}
	return unit.Clone(), nil
}

// GetUnitByExternalID implements Store
func (m *MemoryStore) GetUnitByExternalID(ctx context.Context, source, externalID string) (*model.ContentUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byExternal[externalKey(source, externalID)]
	if !ok {
		return nil, newError(backendMemory, "get_unit_by_external_id", "", ErrNotFound)
	}
	return m.units[id].Clone(), nil
}

// ListUnits implements Store, newest first
func (m *MemoryStore) ListUnits(ctx context.Context, filter ListFilter) ([]*model.ContentUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var units []*model.ContentUnit
	for _, unit := range m.units {
		if filter.Source != "" && unit.Source != filter.Source {
			continue
		}
		if filter.Step != "" && unit.CurrentStep != filter.Step {
			continue
		}
		units = append(units, unit.Clone())
	}

	sort.Slice(units, func(i, j int) bool {
		if units[i].CreatedAt.Equal(units[j].CreatedAt) {
			return units[i].ID < units[j].ID
		}
		return units[i].CreatedAt.After(units[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(units) {
			return nil, nil
		}
		units = units[filter.Offset:]
	}
	if filter.Limit > 0 && len(units) > filter.Limit {
		units = units[:filter.Limit]
	}
	return units, nil
}

// UpdateStep implements Store
func (m *MemoryStore) UpdateStep(ctx context.Context, update StepUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[update.UnitID]
	if !ok {
		return newError(backendMemory, "update_step", update.UnitID, ErrNotFound)
	}

	unit.CurrentStep = update.Step
	unit.Status = update.Step.Status()
	unit.StepDetails = copyDetails(update.Details)
	switch {
	case update.ErrorDetails != nil:
		details := *update.ErrorDetails
		unit.ErrorDetails = &details
	case update.ClearError:
		unit.ErrorDetails = nil
	}
	unit.UpdatedAt = m.now()
	return nil
}

// UpdateTitle implements Store
func (m *MemoryStore) UpdateTitle(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[id]
	if !ok {
		return newError(backendMemory, "update_title", id, ErrNotFound)
	}
	unit.Title = title
	unit.UpdatedAt = m.now()
	return nil
}

// IncrementRetryCount implements Store
func (m *MemoryStore) IncrementRetryCount(ctx context.Context, id string, maxRetries int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[id]
	if !ok {
		return false, newError(backendMemory, "increment_retry_count", id, ErrNotFound)
	}
	if unit.CurrentStep != model.StepFailed || unit.RetryCount >= maxRetries {
		return false, nil
	}

	unit.RetryCount++
	unit.MaxRetries = maxRetries
	unit.CurrentStep = model.StepPending
	unit.Status = model.StatusPending
	unit.ErrorDetails = nil
	unit.StepDetails = map[string]any{"retry": unit.RetryCount}
	unit.UpdatedAt = m.now()
	return true, nil
}

// SaveTranscript implements Store, replacing any transcript of the unit
func (m *MemoryStore) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.units[transcript.UnitID]; !ok {
		return newError(backendMemory, "save_transcript", transcript.UnitID, ErrNotFound)
	}

	stored := *transcript
	stored.Segments = append([]model.Segment(nil), transcript.Segments...)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
		transcript.ID = stored.ID
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	m.transcripts[stored.UnitID] = &stored
	return nil
}

// GetTranscript implements Store
func (m *MemoryStore) GetTranscript(ctx context.Context, unitID string) (*model.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	transcript, ok := m.transcripts[unitID]
	if !ok {
		return nil, newError(backendMemory, "get_transcript", unitID, ErrNotFound)
	}
	c := *transcript
	c.Segments = append([]model.Segment(nil), transcript.Segments...)
	return &c, nil
}

// SaveAnalysis implements Store, replacing any analysis of the unit
func (m *MemoryStore) SaveAnalysis(ctx context.Context, analysis *model.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.units[analysis.UnitID]; !ok {
		return newError(backendMemory, "save_analysis", analysis.UnitID, ErrNotFound)
	}

	stored := cloneAnalysis(analysis)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
		analysis.ID = stored.ID
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	m.analyses[stored.UnitID] = stored
	return nil
}

// GetAnalysis implements Store
func (m *MemoryStore) GetAnalysis(ctx context.Context, unitID string) (*model.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	analysis, ok := m.analyses[unitID]
	if !ok {
		return nil, newError(backendMemory, "get_analysis", unitID, ErrNotFound)
	}
	return cloneAnalysis(analysis), nil
}

// Counts returns the number of stored transcripts and analyses
func (m *MemoryStore) Counts() (transcripts, analyses int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transcripts), len(m.analyses)
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}

func copyDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	c := make(map[string]any, len(details))
	for k, v := range details {
		c[k] = v
	}
	return c
}

func cloneAnalysis(a *model.AnalysisResult) *model.AnalysisResult {
	c := *a
	c.KeyPoints = append([]string(nil), a.KeyPoints...)
	if a.Topics != nil {
		c.Topics = make([]model.Topic, len(a.Topics))
		for i, topic := range a.Topics {
			topic.Keywords = append([]string(nil), topic.Keywords...)
			c.Topics[i] = topic
		}
	}
	return &c
}
