// Package batch fans the orchestrator out over many references in chunks of
// bounded concurrency.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/metadata"
	"media-digest-go/internal/model"
	"media-digest-go/internal/orchestrator"
	"media-digest-go/internal/workers"
	"media-digest-go/pkg/config"
)

// Validation errors
var (
	ErrNoReferences      = errors.New("at least one reference is required")
	ErrTooManyReferences = errors.New("too many references")
	ErrEmptyReference    = errors.New("empty reference")
)

// Runner processes one item
type Runner interface {
	Process(ctx context.Context, req orchestrator.Request) *orchestrator.Result
}

// Options are shared by every item of a batch
type Options struct {
	MaxItemsPerContainer int
	SummaryLength        model.SummaryLength
	SummaryFocus         model.SummaryFocus
	ExtractTopics        bool
	PreferredProvider    string
}

func (o Options) orchestratorOptions() orchestrator.Options {
	return orchestrator.Options{
		SummaryLength:     o.SummaryLength,
		SummaryFocus:      o.SummaryFocus,
		ExtractTopics:     o.ExtractTopics,
		PreferredProvider: o.PreferredProvider,
	}
}

// Request is one batch submission
type Request struct {
	References []string
	Options    Options

	// MaxConcurrent overrides the configured chunk size when > 0
	MaxConcurrent int
}

// ItemError describes one reference or item that did not make it through
type ItemError struct {
	Reference       string     `json:"reference"`
	ExternalID      string     `json:"external_id,omitempty"`
	UnitID          string     `json:"unit_id,omitempty"`
	Subsystem       string     `json:"subsystem"`
	Kind            string     `json:"kind"`
	Message         string     `json:"message"`
	UserMessage     string     `json:"user_message"`
	SuggestedAction string     `json:"suggested_action"`
	Retryable       bool       `json:"retryable"`
	Provider        string     `json:"provider,omitempty"`
	FailedStep      model.Step `json:"failed_step,omitempty"`
}

func newItemError(reference, externalID, unitID string, step model.Step, c *classify.Error) ItemError {
	return ItemError{
		Reference:       reference,
		ExternalID:      externalID,
		UnitID:          unitID,
		Subsystem:       string(c.Subsystem),
		Kind:            string(c.Kind),
		Message:         c.Error(),
		UserMessage:     c.UserMessage,
		SuggestedAction: c.SuggestedAction,
		Retryable:       c.Retryable,
		Provider:        c.Provider,
		FailedStep:      step,
	}
}

// Result is the aggregate outcome of a batch
type Result struct {
	RunID              string                 `json:"run_id"`
	Processed          []*orchestrator.Result `json:"processed"`
	Errors             []ItemError            `json:"errors"`
	TotalEstimatedCost float64                `json:"total_estimated_cost"`
	TotalCost          float64                `json:"total_cost"`
	Items              int                    `json:"items"`
	Chunks             int                    `json:"chunks"`
	StartedAt          time.Time              `json:"started_at"`
	FinishedAt         time.Time              `json:"finished_at"`
}

// Duration returns the wall-clock time of the batch
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Coordinator runs batches
type Coordinator struct {
	config   config.BatchConfig
	metadata metadata.Provider
	runner   Runner
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a coordinator. Zero config values take the package defaults.
func New(cfg config.BatchConfig, meta metadata.Provider, runner Runner, logger *zap.Logger) *Coordinator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = config.DefaultMaxConcurrent
	}
	if cfg.MaxReferences <= 0 {
		cfg.MaxReferences = config.DefaultMaxReferences
	}
	if cfg.ExpandConcurrency <= 0 {
		cfg.ExpandConcurrency = config.DefaultExpandConcurrency
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &Coordinator{
		config:   cfg,
		metadata: meta,
		runner:   runner,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Validate checks the size and content of a reference list
func (c *Coordinator) Validate(refs []string) error {
	if len(refs) == 0 {
		return ErrNoReferences
	}
	if len(refs) > c.config.MaxReferences {
		return fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManyReferences, len(refs), c.config.MaxReferences)
	}
	for i, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("%w at position %d", ErrEmptyReference, i+1)
		}
	}
	return nil
}

// Run expands the references into items and processes them in chunks. Item
// failures are collected in the result. The returned error is reserved for
// an invalid request.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := c.Validate(req.References); err != nil {
		return nil, err
	}

	chunkSize := c.config.MaxConcurrent
	if req.MaxConcurrent > 0 {
		chunkSize = req.MaxConcurrent
	}
	maxItems := req.Options.MaxItemsPerContainer
	if maxItems <= 0 {
		maxItems = c.config.MaxItemsPerContainer
	}

	result := &Result{
		RunID:     uuid.NewString(),
		Processed: []*orchestrator.Result{},
		Errors:    []ItemError{},
		StartedAt: time.Now(),
	}
	logger := c.logger.With(zap.String("run_id", result.RunID))
	logger.Info("Starting batch",
		zap.Int("references", len(req.References)),
		zap.Int("max_concurrent", chunkSize))

	targets, refErrors := c.expand(ctx, req.References, maxItems)
	result.Errors = append(result.Errors, refErrors...)
	result.Items = len(targets)

	chunks := Chunk(targets, chunkSize)
	result.Chunks = len(chunks)
	pool := workers.NewPool(workers.Config{Workers: chunkSize}, logger)
	opts := req.Options.orchestratorOptions()

	for i, chunk := range chunks {
		if i > 0 && c.config.ChunkDelay > 0 {
			if err := c.sleep(ctx, c.config.ChunkDelay); err != nil {
				logger.Warn("Batch interrupted between chunks", zap.Int("chunk", i+1), zap.Error(err))
				c.skip(result, chunks[i:], err)
				break
			}
		}

		logger.Debug("Processing chunk", zap.Int("chunk", i+1), zap.Int("chunks", len(chunks)), zap.Int("items", len(chunk)))
		results := c.runChunk(ctx, pool, chunk, opts)
		for j, res := range results {
			c.collect(result, chunk[j], res)
		}
	}

	result.FinishedAt = time.Now()
	stats := pool.Statistics()
	logger.Info("Batch finished",
		zap.Int("processed", len(result.Processed)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("chunks", result.Chunks),
		zap.Int64("peak_workers", stats.PeakActive),
		zap.Float64("total_estimated_cost", result.TotalEstimatedCost),
		zap.Float64("total_cost", result.TotalCost),
		zap.Duration("duration", result.Duration()))
	return result, nil
}

// runChunk runs every item of a chunk concurrently and waits for all of them
func (c *Coordinator) runChunk(ctx context.Context, pool *workers.Pool, chunk []target, opts orchestrator.Options) []*orchestrator.Result {
	results := make([]*orchestrator.Result, len(chunk))
	tasks := make([]workers.Task, len(chunk))
	for i, t := range chunk {
		tasks[i] = workers.Task{
			ID: t.externalID,
			Run: func(ctx context.Context) error {
				results[i] = c.runner.Process(ctx, orchestrator.Request{
					ExternalID: t.externalID,
					Metadata:   t.metadata,
					Options:    opts,
				})
				return nil
			},
		}
	}

	for i, taskResult := range pool.RunAll(ctx, tasks) {
		if results[i] == nil {
			err := taskResult.Error
			if err == nil {
				err = errors.New("item produced no result")
			}
			results[i] = &orchestrator.Result{
				ExternalID: chunk[i].externalID,
				Status:     orchestrator.StatusFailed,
				Error:      classify.Classify(classify.SubsystemPipeline, err),
			}
		}
	}
	return results
}

func (c *Coordinator) collect(result *Result, t target, res *orchestrator.Result) {
	result.TotalEstimatedCost += res.EstimatedCost
	result.TotalCost += res.Cost

	if res.Status == orchestrator.StatusFailed {
		classified := res.Error
		if classified == nil {
			classified = classify.New(classify.SubsystemPipeline, classify.KindUnknown, errors.New("item failed"))
		}
		result.Errors = append(result.Errors, newItemError(t.reference, t.externalID, res.UnitID, res.FailedStep, classified))
		return
	}
	result.Processed = append(result.Processed, res)
}

// skip reports the items of chunks that never ran
func (c *Coordinator) skip(result *Result, chunks [][]target, err error) {
	classified := classify.Classify(classify.SubsystemPipeline, err)
	for _, chunk := range chunks {
		for _, t := range chunk {
			result.Errors = append(result.Errors, newItemError(t.reference, t.externalID, "", "", classified))
		}
	}
}

// target is one item to process
type target struct {
	reference  string
	externalID string
	metadata   *model.ItemMetadata
}

// expand resolves references into items, preserving order and dropping
// duplicates. Containers are listed concurrently.
func (c *Coordinator) expand(ctx context.Context, refs []string, maxItems int) ([]target, []ItemError) {
	expanded := make([][]target, len(refs))
	failures := make([]*ItemError, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.ExpandConcurrency)
	for i, raw := range refs {
		g.Go(func() error {
			targets, err := c.resolve(gctx, raw, maxItems)
			if err != nil {
				classified := classify.Classify(classify.SubsystemMetadata, err)
				itemErr := newItemError(raw, "", "", "", classified)
				failures[i] = &itemErr
				return nil
			}
			expanded[i] = targets
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var targets []target
	var errs []ItemError
	for i := range refs {
		if failures[i] != nil {
			errs = append(errs, *failures[i])
			continue
		}
		for _, t := range expanded[i] {
			if seen[t.externalID] {
				continue
			}
			seen[t.externalID] = true
			targets = append(targets, t)
		}
	}
	return targets, errs
}

func (c *Coordinator) resolve(ctx context.Context, raw string, maxItems int) ([]target, error) {
	ref, err := metadata.ParseReference(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", metadata.ErrNotFound, err)
	}

	containerID := ref.ID
	switch ref.Kind {
	case metadata.ReferenceItem:
		return []target{{reference: raw, externalID: ref.ID}}, nil
	case metadata.ReferenceHandle:
		id, err := c.metadata.ResolveContainerID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, fmt.Errorf("handle %s: %w", ref.ID, metadata.ErrContainerNotFound)
		}
		containerID = id
	}

	var targets []target
	err = metadata.EachContainerItem(ctx, c.metadata, containerID, maxItems, func(item model.ItemMetadata) bool {
		it := item
		targets = append(targets, target{reference: raw, externalID: item.ID, metadata: &it})
		return true
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Expanded container",
		zap.String("reference", raw),
		zap.String("container_id", containerID),
		zap.Int("items", len(targets)))
	return targets, nil
}

// Chunk splits items into consecutive groups of at most size
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
