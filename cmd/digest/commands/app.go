package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"media-digest-go/internal/batch"
	"media-digest-go/internal/llm"
	"media-digest-go/internal/metadata"
	"media-digest-go/internal/orchestrator"
	"media-digest-go/internal/retry"
	"media-digest-go/internal/store"
	"media-digest-go/internal/tracker"
	"media-digest-go/internal/transcript"
	"media-digest-go/pkg/config"
	"media-digest-go/pkg/ffmpeg"
	"media-digest-go/pkg/httpclient"
	"media-digest-go/pkg/stats"
	"media-digest-go/pkg/storage"
	"media-digest-go/pkg/utils"
)

// app holds the wired pipeline of one command invocation
type app struct {
	config   *config.Config
	logger   *zap.Logger
	store    store.Store
	archive  storage.Archive
	client   *httpclient.HTTPClient
	tracker  *tracker.Tracker
	metadata *metadata.YouTube
	analyzer *llm.Analyzer
	stats    *stats.Collector

	orchestrator *orchestrator.Orchestrator
	retry        *retry.Controller
	batch        *batch.Coordinator
}

// loggerFrom reads the logger stored by the root command
func loggerFrom(ctx context.Context) (*zap.Logger, error) {
	logger, ok := ctx.Value("logger").(*zap.Logger)
	if !ok {
		return nil, fmt.Errorf("logger not found in context")
	}
	return logger, nil
}

// newApp loads configuration and wires every component
func newApp(ctx context.Context, logger *zap.Logger) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.New(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	archive, err := storage.NewStorage(&storage.StorageConfig{
		Backend:     storage.StorageBackend(cfg.Archive.Backend),
		Bucket:      cfg.Archive.Bucket,
		Prefix:      cfg.Archive.Prefix,
		AWSRegion:   cfg.Archive.Region,
		AWSProfile:  cfg.Archive.Profile,
		AWSEndpoint: cfg.Archive.Endpoint,
		Timeout:     cfg.Archive.Timeout,
	}, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	client := httpclient.NewHTTPClient(httpclient.Config{
		Timeout:       cfg.YouTube.Timeout,
		RetryAttempts: cfg.YouTube.RetryAttempts,
	}, logger)

	a := &app{
		config:  cfg,
		logger:  logger,
		store:   st,
		archive: archive,
		client:  client,
		stats:   stats.NewCollector(),
	}

	captionOpts := []transcript.CaptionOption{transcript.WithStrictLanguages(cfg.Transcript.StrictLanguages)}
	if cfg.Cache.Enabled {
		cache, err := storage.NewFileCache(cfg.Cache.Dir, cfg.Cache.TTL, logger)
		if err != nil {
			logger.Warn("Caption cache disabled", zap.Error(err))
		} else {
			captionOpts = append(captionOpts, transcript.WithCache(cache))
		}
	}
	captions := transcript.NewYouTubeCaptions(client, cfg.YouTube.WatchBaseURL, cfg.Transcript.Languages, logger, captionOpts...)

	var fallback transcript.AudioTranscriber
	if cfg.Transcript.Fallback == config.FallbackWhisper {
		tool := ffmpeg.New(cfg.Transcript.FFprobeBinary, cfg.Transcript.FFmpegBinary, cfg.Transcript.CommandTimeout, logger)
		fallback = transcript.NewWhisperCLI(transcript.WhisperConfig{
			YtDlpBinary:      cfg.Transcript.YtDlpBinary,
			WhisperBinary:    cfg.Transcript.WhisperBinary,
			Model:            cfg.Transcript.WhisperModel,
			Threads:          cfg.Transcript.WhisperThreads,
			Processors:       cfg.Transcript.WhisperProcessors,
			WorkDir:          cfg.Transcript.WorkDir,
			WatchBaseURL:     cfg.YouTube.WatchBaseURL,
			MaxAudioDuration: cfg.Transcript.MaxAudioDuration,
			CommandTimeout:   cfg.Transcript.CommandTimeout,
		}, tool, nil, logger)
	}

	analyzer, err := llm.NewFromConfig(cfg.LLM, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to set up language models: %w", err)
	}

	a.metadata = metadata.NewYouTube(client, cfg.YouTube.APIBaseURL, cfg.YouTube.APIKey, logger)
	a.analyzer = analyzer
	a.tracker = tracker.New(st, logger, tracker.WithRetainedErrorDetails(cfg.Pipeline.RetainErrorDetails))
	a.orchestrator = orchestrator.New(cfg.Pipeline, orchestrator.Dependencies{
		Store:       st,
		Tracker:     a.tracker,
		Metadata:    a.metadata,
		Transcripts: transcript.NewAcquirer(captions, fallback, logger),
		Analyzer:    analyzer,
		Archive:     archive,
		Stats:       a.stats,
	}, logger)
	a.retry = retry.New(st, a.orchestrator, cfg.Pipeline.MaxRetries, logger)
	a.batch = batch.New(cfg.Batch, a.metadata, a.orchestrator, logger)

	if cfg.Store.Backend == config.StoreBackendMemory {
		logger.Debug("Content store is in memory, units do not outlive this command")
	}

	logger.Debug("Pipeline wired",
		zap.String("store", cfg.Store.Backend.String()),
		zap.String("archive", cfg.Archive.Backend),
		zap.String("fallback", cfg.Transcript.Fallback.String()),
		zap.String("preferred_provider", cfg.LLM.PreferredProvider))
	return a, nil
}

// Close releases the store, archive and HTTP connections
func (a *app) Close() {
	var errs []error
	if a.archive != nil {
		errs = append(errs, a.archive.Close())
	}
	errs = append(errs, a.store.Close(), a.client.Close())
	if err := utils.CombineErrors(errs); err != nil {
		a.logger.Warn("Failed to release resources", zap.Error(err))
	}
	a.logger.Sync()
}

// printJSON writes v to stdout as indented JSON
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
