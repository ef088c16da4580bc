package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/pkg/config"
)

const backendPostgres = "postgres"

var unitColumns = []string{
	"id", "source", "external_id", "title", "status", "current_step",
	"step_details", "error_details", "retry_count", "max_retries", "created_at", "updated_at",
}

// PostgresStore persists the pipeline state in Postgres
type PostgresStore struct {
	db      *sql.DB
	psql    sq.StatementBuilderType
	timeout time.Duration
	logger  *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens the database and, when configured, applies migrations
func NewPostgresStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, newError(backendPostgres, "open", "", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, newError(backendPostgres, "ping", "", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db, "up"); err != nil {
			db.Close()
			return nil, newError(backendPostgres, "migrate", "", err)
		}
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger.Info("Postgres content store initialized",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Bool("auto_migrate", cfg.AutoMigrate))

	return NewPostgresStoreWithDB(db, timeout, logger), nil
}

// NewPostgresStoreWithDB wraps an already opened database
func NewPostgresStoreWithDB(db *sql.DB, timeout time.Duration, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:      db,
		psql:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		timeout: timeout,
		logger:  logger,
	}
}

func (p *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// CreateUnitIfAbsent implements Store with INSERT ... ON CONFLICT DO NOTHING
func (p *PostgresStore) CreateUnitIfAbsent(ctx context.Context, unit *model.ContentUnit) (*model.ContentUnit, bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	id := unit.ID
	if id == "" {
		id = uuid.NewString()
	}
	step := unit.CurrentStep
	if step == "" {
		step = model.StepPending
	}
	maxRetries := unit.MaxRetries
	if maxRetries == 0 {
		maxRetries = model.DefaultMaxRetries
	}
	details, err := marshalNullable(unit.StepDetails)
	if err != nil {
		return nil, false, newError(backendPostgres, "create_unit", id, err)
	}

	query, args, err := p.psql.Insert("content_units").
		Columns("id", "source", "external_id", "title", "status", "current_step", "step_details", "retry_count", "max_retries").
		Values(id, unit.Source, unit.ExternalID, unit.Title, string(step.Status()), string(step), details, unit.RetryCount, maxRetries).
		Suffix("ON CONFLICT (source, external_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return nil, false, newError(backendPostgres, "create_unit", id, err)
	}

	var insertedID string
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&insertedID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing, err := p.GetUnitByExternalID(ctx, unit.Source, unit.ExternalID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case err != nil:
		return nil, false, newError(backendPostgres, "create_unit", id, err)
	}

	created, err := p.GetUnit(ctx, insertedID)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// GetUnit implements Store
func (p *PostgresStore) GetUnit(ctx context.Context, id string) (*model.ContentUnit, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query, args, err := p.psql.Select(unitColumns...).From("content_units").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, newError(backendPostgres, "get_unit", id, err)
	}

	unit, err := scanUnit(p.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, newError(backendPostgres, "get_unit", id, err)
	}
	return unit, nil
}

// GetUnitByExternalID implements Store
func (p *PostgresStore) GetUnitByExternalID(ctx context.Context, source, externalID string) (*model.ContentUnit, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query, args, err := p.psql.Select(unitColumns...).From("content_units").
		Where(sq.Eq{"source": source, "external_id": externalID}).ToSql()
	if err != nil {
		return nil, newError(backendPostgres, "get_unit_by_external_id", "", err)
	}

	unit, err := scanUnit(p.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, newError(backendPostgres, "get_unit_by_external_id", "", err)
	}
	return unit, nil
}

// ListUnits implements Store, newest first
func (p *PostgresStore) ListUnits(ctx context.Context, filter ListFilter) ([]*model.ContentUnit, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	builder := p.psql.Select(unitColumns...).From("content_units").OrderBy("created_at DESC", "id")
	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Step != "" {
		builder = builder.Where(sq.Eq{"current_step": string(filter.Step)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, newError(backendPostgres, "list_units", "", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newError(backendPostgres, "list_units", "", err)
	}
	defer rows.Close()

	var units []*model.ContentUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, newError(backendPostgres, "list_units", "", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(backendPostgres, "list_units", "", err)
	}
	return units, nil
}

// UpdateStep implements Store
func (p *PostgresStore) UpdateStep(ctx context.Context, update StepUpdate) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	details, err := marshalNullable(update.Details)
	if err != nil {
		return newError(backendPostgres, "update_step", update.UnitID, err)
	}

	builder := p.psql.Update("content_units").
		Set("current_step", string(update.Step)).
		Set("status", string(update.Step.Status())).
		Set("step_details", details).
		Set("updated_at", sq.Expr("NOW()"))

	switch {
	case update.ErrorDetails != nil:
		errDetails, err := json.Marshal(update.ErrorDetails)
		if err != nil {
			return newError(backendPostgres, "update_step", update.UnitID, err)
		}
		builder = builder.Set("error_details", string(errDetails))
	case update.ClearError:
		builder = builder.Set("error_details", nil)
	}

	query, args, err := builder.Where(sq.Eq{"id": update.UnitID}).ToSql()
	if err != nil {
		return newError(backendPostgres, "update_step", update.UnitID, err)
	}

	return p.execOne(ctx, "update_step", update.UnitID, query, args...)
}

// UpdateTitle implements Store
func (p *PostgresStore) UpdateTitle(ctx context.Context, id, title string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query, args, err := p.psql.Update("content_units").
		Set("title", title).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return newError(backendPostgres, "update_title", id, err)
	}

	return p.execOne(ctx, "update_title", id, query, args...)
}

// IncrementRetryCount implements Store as a single conditional update
func (p *PostgresStore) IncrementRetryCount(ctx context.Context, id string, maxRetries int) (bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query, args, err := p.psql.Update("content_units").
		Set("retry_count", sq.Expr("retry_count + 1")).
		Set("max_retries", maxRetries).
		Set("current_step", string(model.StepPending)).
		Set("status", string(model.StatusPending)).
		Set("error_details", nil).
		Set("step_details", sq.Expr("jsonb_build_object('retry', retry_count + 1)")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "current_step": string(model.StepFailed)}).
		Where(sq.Lt{"retry_count": maxRetries}).
		Suffix("RETURNING retry_count").
		ToSql()
	if err != nil {
		return false, newError(backendPostgres, "increment_retry_count", id, err)
	}

	var count int
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish an ineligible unit from a missing one
		if _, getErr := p.GetUnit(ctx, id); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	if err != nil {
		return false, newError(backendPostgres, "increment_retry_count", id, err)
	}

	p.logger.Debug("Retry count incremented", zap.String("unit_id", id), zap.Int("retry_count", count))
	return true, nil
}

// SaveTranscript implements Store as an upsert keyed by unit
func (p *PostgresStore) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if transcript.ID == "" {
		transcript.ID = uuid.NewString()
	}
	segments, err := json.Marshal(transcript.Segments)
	if err != nil {
		return newError(backendPostgres, "save_transcript", transcript.UnitID, err)
	}

	query, args, err := p.psql.Insert("transcripts").
		Columns("id", "unit_id", "raw_text", "processed_text", "segments", "transcript_type", "language").
		Values(transcript.ID, transcript.UnitID, transcript.RawText, transcript.ProcessedText,
			string(segments), string(transcript.Type), transcript.Language).
		Suffix(`ON CONFLICT (unit_id) DO UPDATE
              SET raw_text = EXCLUDED.raw_text,
                  processed_text = EXCLUDED.processed_text,
                  segments = EXCLUDED.segments,
                  transcript_type = EXCLUDED.transcript_type,
                  language = EXCLUDED.language`).
		ToSql()
	if err != nil {
		return newError(backendPostgres, "save_transcript", transcript.UnitID, err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return newError(backendPostgres, "save_transcript", transcript.UnitID, translateError(err))
	}
	return nil
}

// GetTranscript implements Store
func (p *PostgresStore) GetTranscript(ctx context.Context, unitID string) (*model.Transcript, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query, args, err := p.psql.Select("id", "unit_id", "raw_text", "processed_text", "segments",
		"transcript_type", "language", "created_at").
		From("transcripts").Where(sq.Eq{"unit_id": unitID}).ToSql()
	if err != nil {
		return nil, newError(backendPostgres, "get_transcript", unitID, err)
	}

	var (
		t        model.Transcript
		segments []byte
		kind     string
	)
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.UnitID, &t.RawText, &t.ProcessedText,
		&segments, &kind, &t.Language, &t.CreatedAt)
	if err != nil {
		return nil, newError(backendPostgres, "get_transcript", unitID, translateError(err))
	}
	t.Type = model.TranscriptType(kind)
	if err := json.Unmarshal(segments, &t.Segments); err != nil {
		return nil, newError(backendPostgres, "get_transcript", unitID, err)
	}
	return &t, nil
}

// SaveAnalysis implements Store as an upsert keyed by unit
func (p *PostgresStore) SaveAnalysis(ctx context.Context, analysis *model.AnalysisResult) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if analysis.ID == "" {
		analysis.ID = uuid.NewString()
	}
	topics, err := json.Marshal(analysis.Topics)
	if err != nil {
		return newError(backendPostgres, "save_analysis", analysis.UnitID, err)
	}

	query, args, err := p.psql.Insert("analysis_results").
		Columns("id", "unit_id", "title", "summary", "key_points", "topics", "confidence",
			"provider", "model", "input_tokens", "output_tokens", "cost", "elapsed_ms").
		Values(analysis.ID, analysis.UnitID, analysis.Title, analysis.Summary,
			pq.StringArray(analysis.KeyPoints), string(topics), analysis.Confidence,
			analysis.Provider, analysis.Model, analysis.InputTokens, analysis.OutputTokens,
			analysis.Cost, analysis.ElapsedTime.Milliseconds()).
		Suffix(`ON CONFLICT (unit_id) DO UPDATE
              SET title = EXCLUDED.title,
                  summary = EXCLUDED.summary,
                  key_points = EXCLUDED.key_points,
                  topics = EXCLUDED.topics,
                  confidence = EXCLUDED.confidence,
                  provider = EXCLUDED.provider,
                  model = EXCLUDED.model,
                  input_tokens = EXCLUDED.input_tokens,
                  output_tokens = EXCLUDED.output_tokens,
                  cost = EXCLUDED.cost,
                  elapsed_ms = EXCLUDED.elapsed_ms`).
		ToSql()
	if err != nil {
		return newError(backendPostgres, "save_analysis", analysis.UnitID, err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return newError(backendPostgres, "save_analysis", analysis.UnitID, translateError(err))
	}
	return nil
}

// GetAnalysis implements Store
func (p *PostgresStore) GetAnalysis(ctx context.Context, unitID string) (*model.AnalysisResult, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query, args, err := p.psql.Select("id", "unit_id", "title", "summary", "key_points", "topics",
		"confidence", "provider", "model", "input_tokens", "output_tokens", "cost", "elapsed_ms", "created_at").
		From("analysis_results").Where(sq.Eq{"unit_id": unitID}).ToSql()
	if err != nil {
		return nil, newError(backendPostgres, "get_analysis", unitID, err)
	}

	var (
		a         model.AnalysisResult
		keyPoints pq.StringArray
		topics    []byte
		elapsedMS int64
	)
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.UnitID, &a.Title, &a.Summary,
		&keyPoints, &topics, &a.Confidence, &a.Provider, &a.Model, &a.InputTokens, &a.OutputTokens,
		&a.Cost, &elapsedMS, &a.CreatedAt)
	if err != nil {
		return nil, newError(backendPostgres, "get_analysis", unitID, translateError(err))
	}
	a.KeyPoints = []string(keyPoints)
	a.ElapsedTime = time.Duration(elapsedMS) * time.Millisecond
	if err := json.Unmarshal(topics, &a.Topics); err != nil {
		return nil, newError(backendPostgres, "get_analysis", unitID, err)
	}
	return &a, nil
}

// Close implements Store
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) execOne(ctx context.Context, op, id, query string, args ...any) error {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return newError(backendPostgres, op, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return newError(backendPostgres, op, id, err)
	}
	if affected == 0 {
		return newError(backendPostgres, op, id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*model.ContentUnit, error) {
	var (
		unit         model.ContentUnit
		status, step string
		details      []byte
		errDetails   []byte
	)
	err := row.Scan(&unit.ID, &unit.Source, &unit.ExternalID, &unit.Title, &status, &step,
		&details, &errDetails, &unit.RetryCount, &unit.MaxRetries, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}

	unit.Status = model.Status(status)
	unit.CurrentStep = model.Step(step)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &unit.StepDetails); err != nil {
			return nil, fmt.Errorf("decode step_details: %w", err)
		}
	}
	if len(errDetails) > 0 {
		unit.ErrorDetails = &model.ErrorDetails{}
		if err := json.Unmarshal(errDetails, unit.ErrorDetails); err != nil {
			return nil, fmt.Errorf("decode error_details: %w", err)
		}
	}
	return &unit, nil
}

// marshalNullable encodes a map as JSON text, or SQL NULL when empty. JSON is
// passed as text because lib/pq sends []byte parameters as bytea.
func marshalNullable(value map[string]any) (any, error) {
	if len(value) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// translateError maps driver errors onto package sentinels
func translateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		// foreign_key_violation: the referenced unit does not exist
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Message)
	}
	return err
}
