// Package orchestrator drives one content unit through the pipeline state
// machine: metadata, transcript, analysis and persistence.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/llm"
	"media-digest-go/internal/metadata"
	"media-digest-go/internal/model"
	"media-digest-go/internal/store"
	"media-digest-go/internal/tracker"
	"media-digest-go/internal/transcript"
	"media-digest-go/pkg/config"
	"media-digest-go/pkg/stats"
	"media-digest-go/pkg/storage"
)

// Errors returned by Reprocess before any step runs
var (
	ErrIllegalTransition = errors.New("illegal step transition")
	ErrUnitBusy          = errors.New("unit is already being processed")
)

// TranscriptSource acquires the transcript of an external item
type TranscriptSource interface {
	Acquire(ctx context.Context, itemID string) (*transcript.Result, error)
}

// Analyzer runs language-model analysis
type Analyzer interface {
	GenerateSummary(ctx context.Context, text string, meta *model.ItemMetadata, opts llm.SummaryOptions) (*llm.SummaryAnalysis, error)
	ExtractTopics(ctx context.Context, pieces []string, opts llm.TopicOptions) (*llm.TopicAnalysis, error)
	EstimateCost(contentLength int, includeTopics bool, preferred string) float64
}

// Dependencies are the collaborators of an Orchestrator. Archive and Stats
// are optional.
type Dependencies struct {
	Store       store.Store
	Tracker     *tracker.Tracker
	Metadata    metadata.Provider
	Transcripts TranscriptSource
	Analyzer    Analyzer
	Archive     storage.Archive
	Stats       *stats.Collector
}

// Orchestrator runs the per-unit pipeline
type Orchestrator struct {
	config config.PipelineConfig
	deps   Dependencies
	logger *zap.Logger

	inFlight sync.Map
}

// New creates an orchestrator
func New(cfg config.PipelineConfig, deps Dependencies, logger *zap.Logger) *Orchestrator {
	if cfg.Source == "" {
		cfg.Source = config.DefaultSource
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = model.DefaultMaxRetries
	}
	if deps.Tracker == nil {
		deps.Tracker = tracker.New(deps.Store, logger, tracker.WithRetainedErrorDetails(cfg.RetainErrorDetails))
	}
	return &Orchestrator{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
}

// Source returns the source identifier units are created under
func (o *Orchestrator) Source() string {
	return o.config.Source
}

// Process creates the unit for a new external item and runs the pipeline. A
// unit that already exists is returned as already_exists without running.
func (o *Orchestrator) Process(ctx context.Context, req Request) *Result {
	start := time.Now()
	result := &Result{ExternalID: req.ExternalID}

	unit := &model.ContentUnit{
		ID:          uuid.NewString(),
		Source:      o.config.Source,
		ExternalID:  req.ExternalID,
		CurrentStep: model.StepPending,
		Status:      model.StatusPending,
		MaxRetries:  o.config.MaxRetries,
	}
	if req.Metadata != nil {
		unit.Title = req.Metadata.Title
	}

	stored, created, err := o.deps.Store.CreateUnitIfAbsent(ctx, unit)
	if err != nil {
		result.Status = StatusFailed
		result.Step = model.StepPending
		result.Error = classify.Classify(classify.SubsystemPipeline, fmt.Errorf("creating unit: %w", err))
		result.Duration = time.Since(start)
		o.deps.Stats.RecordOutcome(stats.OutcomeFailed, string(result.Error.Kind))
		return result
	}

	if !created {
		o.logger.Info("Unit already exists, skipping",
			zap.String("unit_id", stored.ID),
			zap.String("external_id", req.ExternalID),
			zap.String("step", stored.CurrentStep.String()))
		o.deps.Stats.RecordOutcome(stats.OutcomeAlreadyExists, "")
		return &Result{
			UnitID:     stored.ID,
			ExternalID: stored.ExternalID,
			Title:      stored.Title,
			Status:     StatusAlreadyExists,
			Step:       stored.CurrentStep,
			RetryCount: stored.RetryCount,
			CanRetry:   stored.CanRetry(),
			Duration:   time.Since(start),
		}
	}

	return o.run(ctx, stored, req.Metadata, req.Options, false)
}

// Reprocess re-runs the pipeline of an existing unit sitting in pending, as
// left by the retry controller. A stored transcript is reused.
func (o *Orchestrator) Reprocess(ctx context.Context, unitID string, opts Options) (*Result, error) {
	unit, err := o.deps.Store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit.CurrentStep != model.StepPending {
		return nil, fmt.Errorf("%w: unit %s is %s, not pending", ErrIllegalTransition, unitID, unit.CurrentStep)
	}
	return o.run(ctx, unit, nil, opts, true), nil
}

// Claim reserves a unit for the caller until release is called. It reports
// false while a pipeline run or another claim holds the unit.
func (o *Orchestrator) Claim(unitID string) (release func(), ok bool) {
	if _, busy := o.inFlight.LoadOrStore(unitID, struct{}{}); busy {
		return nil, false
	}
	return func() { o.inFlight.Delete(unitID) }, true
}

// unitRun is the mutable state of one pipeline run
type unitRun struct {
	unit      *model.ContentUnit
	step      model.Step
	stepStart time.Time
	result    *Result
}

func (o *Orchestrator) run(ctx context.Context, unit *model.ContentUnit, meta *model.ItemMetadata, opts Options, reuseTranscript bool) *Result {
	start := time.Now()
	r := &unitRun{
		unit: unit,
		step: unit.CurrentStep,
		result: &Result{
			UnitID:     unit.ID,
			ExternalID: unit.ExternalID,
			Title:      unit.Title,
			Step:       unit.CurrentStep,
			RetryCount: unit.RetryCount,
		},
	}
	defer func() {
		r.result.Duration = time.Since(start)
	}()

	release, ok := o.Claim(unit.ID)
	if !ok {
		r.result.Status = StatusFailed
		r.result.Error = classify.New(classify.SubsystemPipeline, classify.KindUnknown, fmt.Errorf("%w: %s", ErrUnitBusy, unit.ID))
		r.result.CanRetry = false
		return r.result
	}
	defer release()

	if o.config.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.UnitTimeout)
		defer cancel()
	}

	logger := o.logger.With(zap.String("unit_id", unit.ID), zap.String("external_id", unit.ExternalID))
	logger.Info("Processing unit")

	if err := o.execute(ctx, r, meta, opts, reuseTranscript, logger); err != nil {
		return o.fail(ctx, r, err, logger)
	}

	r.result.Status = StatusCompleted
	r.result.CanRetry = false
	o.deps.Stats.RecordOutcome(stats.OutcomeCompleted, "")
	logger.Info("Unit completed",
		zap.String("transcript_type", string(r.result.TranscriptType)),
		zap.Float64("estimated_cost", r.result.EstimatedCost),
		zap.Float64("cost", r.result.Cost),
		zap.Duration("elapsed", time.Since(start)))
	return r.result
}

// execute runs the steps in order. Each step is recorded before its work.
func (o *Orchestrator) execute(ctx context.Context, r *unitRun, meta *model.ItemMetadata, opts Options, reuseTranscript bool, logger *zap.Logger) error {
	// fetching_metadata
	if err := o.advance(ctx, r, model.StepFetchingMetadata, nil); err != nil {
		return err
	}
	if meta == nil {
		fetched, err := o.deps.Metadata.GetItemDetails(ctx, r.unit.ExternalID)
		if err != nil {
			return classify.Classify(classify.SubsystemMetadata, err)
		}
		meta = fetched
	}
	if meta.Title != "" && meta.Title != r.unit.Title {
		if err := o.deps.Store.UpdateTitle(ctx, r.unit.ID, meta.Title); err != nil {
			return err
		}
		r.unit.Title = meta.Title
		r.result.Title = meta.Title
	}

	// extracting_transcript
	if err := o.advance(ctx, r, model.StepExtractingTranscript, map[string]any{"title": meta.Title}); err != nil {
		return err
	}
	result, err := o.transcript(ctx, r.unit, reuseTranscript, logger)
	if err != nil {
		return err
	}
	r.result.TranscriptType = result.Type

	// ai_processing
	r.result.EstimatedCost = o.deps.Analyzer.EstimateCost(len(result.ProcessedText), opts.ExtractTopics, opts.PreferredProvider)
	o.deps.Stats.RecordEstimate(r.result.EstimatedCost)
	if err := o.advance(ctx, r, model.StepAIProcessing, map[string]any{
		"transcript_type": string(result.Type),
		"characters":      len(result.ProcessedText),
		"estimated_cost":  r.result.EstimatedCost,
	}); err != nil {
		return err
	}
	analysis, err := o.analyze(ctx, r.unit, result, meta, opts, logger)
	if err != nil {
		return err
	}
	r.result.Analysis = analysis
	r.result.Cost = analysis.Cost

	// saving_data
	if err := o.advance(ctx, r, model.StepSavingData, map[string]any{
		"provider": analysis.Provider,
		"model":    analysis.Model,
	}); err != nil {
		return err
	}
	if err := o.deps.Store.SaveAnalysis(ctx, analysis); err != nil {
		return err
	}
	o.archive(ctx, r.unit, "analysis.json", analysis, logger)

	return o.advance(ctx, r, model.StepCompleted, map[string]any{
		"analysis_id":    analysis.ID,
		"provider":       analysis.Provider,
		"cost":           analysis.Cost,
		"estimated_cost": r.result.EstimatedCost,
	})
}

// transcript returns the stored transcript on reprocess, otherwise acquires
// and stores a new one
func (o *Orchestrator) transcript(ctx context.Context, unit *model.ContentUnit, reuse bool, logger *zap.Logger) (*transcript.Result, error) {
	if reuse {
		stored, err := o.deps.Store.GetTranscript(ctx, unit.ID)
		switch {
		case err == nil:
			logger.Debug("Reusing stored transcript", zap.String("transcript_id", stored.ID))
			return transcript.FromModel(stored), nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	result, err := o.deps.Transcripts.Acquire(ctx, unit.ExternalID)
	if err != nil {
		return nil, classify.Classify(classify.SubsystemTranscript, err)
	}
	o.deps.Stats.RecordTranscript(string(result.Type))

	record := result.ToModel(unit.ID)
	if err := o.deps.Store.SaveTranscript(ctx, record); err != nil {
		return nil, err
	}
	o.archive(ctx, unit, "transcript.json", record, logger)
	return result, nil
}

// analyze summarizes the transcript. When topics were requested but the
// summary carried none, a dedicated topic extraction fills them in.
func (o *Orchestrator) analyze(ctx context.Context, unit *model.ContentUnit, t *transcript.Result, meta *model.ItemMetadata, opts Options, logger *zap.Logger) (*model.AnalysisResult, error) {
	text := t.ProcessedText
	if text == "" {
		text = t.RawText
	}

	summary, err := o.deps.Analyzer.GenerateSummary(ctx, text, meta, opts.summaryOptions())
	if err != nil {
		return nil, classify.Classify(classify.SubsystemLLM, err)
	}
	o.deps.Stats.RecordUsage(summary.Provider, summary.InputTokens, summary.OutputTokens, summary.Cost)

	analysis := &model.AnalysisResult{
		UnitID:       unit.ID,
		Title:        summary.Summary.Title,
		Summary:      summary.Summary.Summary,
		KeyPoints:    summary.Summary.KeyPoints,
		Topics:       summary.Summary.Topics,
		Confidence:   summary.Summary.Confidence,
		Provider:     summary.Provider,
		Model:        summary.Model,
		InputTokens:  summary.InputTokens,
		OutputTokens: summary.OutputTokens,
		Cost:         summary.Cost,
		ElapsedTime:  summary.Elapsed,
	}

	if opts.ExtractTopics && len(analysis.Topics) == 0 {
		topics, err := o.deps.Analyzer.ExtractTopics(ctx, []string{text}, llm.TopicOptions{
			PreferredProvider: opts.PreferredProvider,
		})
		if err != nil {
			logger.Warn("Topic extraction failed, keeping summary without topics", zap.Error(err))
		} else {
			o.deps.Stats.RecordUsage(topics.Provider, topics.InputTokens, topics.OutputTokens, topics.Cost)
			analysis.Topics = topics.Topics.Topics
			analysis.InputTokens += topics.InputTokens
			analysis.OutputTokens += topics.OutputTokens
			analysis.Cost += topics.Cost
			analysis.ElapsedTime += topics.Elapsed
		}
	}

	return analysis, nil
}

// advance records the next step before its work begins
func (o *Orchestrator) advance(ctx context.Context, r *unitRun, next model.Step, details map[string]any) error {
	if !r.step.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.step, next)
	}
	if err := o.deps.Tracker.RecordStep(ctx, r.unit.ID, next, details, nil); err != nil {
		return err
	}

	now := time.Now()
	if !r.stepStart.IsZero() {
		o.deps.Stats.RecordStep(r.step.String(), now.Sub(r.stepStart))
	}
	r.step = next
	r.stepStart = now
	r.result.Step = next
	return nil
}

// fail classifies err, records the failed step and converts it into the
// unit's result
func (o *Orchestrator) fail(ctx context.Context, r *unitRun, err error, logger *zap.Logger) *Result {
	classified := classify.Classify(classify.SubsystemPipeline, err)
	failedStep := r.step

	if r.step.IsTerminal() {
		logger.Error("Unit failed after reaching a terminal step", zap.Error(err))
	} else {
		// record even when the run context is done
		recordCtx := context.WithoutCancel(ctx)
		details := map[string]any{"failed_step": failedStep.String()}
		if recordErr := o.deps.Tracker.RecordStep(recordCtx, r.unit.ID, model.StepFailed, details, classified.Details(failedStep)); recordErr != nil {
			logger.Error("Failed to record failure", zap.Error(recordErr))
		} else {
			r.step = model.StepFailed
		}
	}

	r.result.Status = StatusFailed
	r.result.Step = r.step
	r.result.FailedStep = failedStep
	r.result.Error = classified
	r.result.CanRetry = r.unit.RetryCount < r.unit.MaxRetries

	o.deps.Stats.RecordOutcome(stats.OutcomeFailed, string(classified.Kind))
	logger.Warn("Unit failed",
		zap.String("failed_step", failedStep.String()),
		zap.String("subsystem", string(classified.Subsystem)),
		zap.String("kind", string(classified.Kind)),
		zap.String("provider", classified.Provider),
		zap.Bool("retryable", classified.Retryable),
		zap.Error(err))
	return r.result
}

// archive writes an artifact of the unit. Failures are logged only.
func (o *Orchestrator) archive(ctx context.Context, unit *model.ContentUnit, name string, value any, logger *zap.Logger) {
	if o.deps.Archive == nil {
		return
	}
	body, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		logger.Warn("Failed to encode artifact", zap.String("artifact", name), zap.Error(err))
		return
	}
	key := ArtifactKey(unit, name)
	if err := o.deps.Archive.PutObject(ctx, key, body, "application/json"); err != nil {
		logger.Warn("Failed to archive artifact", zap.String("key", key), zap.Error(err))
		return
	}
	logger.Debug("Archived artifact", zap.String("key", key), zap.Int("bytes", len(body)))
}

// ArtifactKey is the archive key of a unit artifact
func ArtifactKey(unit *model.ContentUnit, name string) string {
	return path.Join(unit.Source, unit.ExternalID, name)
}
