package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"media-digest-go/pkg/utils"
)

// Default values
const (
	DefaultSource               = "youtube"
	DefaultMaxRetries           = 3
	DefaultMaxConcurrent        = 3
	DefaultChunkDelay           = time.Second
	DefaultMaxReferences        = 50
	DefaultMaxItemsPerContainer = 10
	DefaultExpandConcurrency    = 3
	DefaultMaxTranscriptChars   = 100000
	DefaultCacheDir             = ".digest-cache"
	DefaultReportDir            = "reports"
)

// Providers lists the language-model providers in their default fallback order
var Providers = []string{"openai", "gemini"}

// SetDefaults sets default values for the configuration
func SetDefaults() {
	viper.SetDefault("verbose", false)

	// Content store
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.max-open-conns", 10)
	viper.SetDefault("store.auto-migrate", true)
	viper.SetDefault("store.query-timeout", "10s")

	// Artifact archive
	viper.SetDefault("archive.backend", "none")
	viper.SetDefault("archive.bucket", "")
	viper.SetDefault("archive.prefix", "digests")
	viper.SetDefault("archive.region", "auto")
	viper.SetDefault("archive.profile", "")
	viper.SetDefault("archive.endpoint", "")
	viper.SetDefault("archive.timeout", "1m")

	// Caption cache
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dir", DefaultCacheDir)
	viper.SetDefault("cache.ttl", "168h")

	// Metadata provider
	viper.SetDefault("youtube.api-key", "")
	viper.SetDefault("youtube.api-base-url", "https://www.googleapis.com/youtube/v3")
	viper.SetDefault("youtube.watch-base-url", "https://www.youtube.com")
	viper.SetDefault("youtube.timeout", "30s")
	viper.SetDefault("youtube.retry-attempts", 2)

	// Transcript acquisition
	viper.SetDefault("transcript.languages", []string{"en"})
	viper.SetDefault("transcript.strict-languages", false)
	viper.SetDefault("transcript.fallback", "none")
	viper.SetDefault("transcript.work-dir", "")
	viper.SetDefault("transcript.yt-dlp-binary", "yt-dlp")
	viper.SetDefault("transcript.ffmpeg-binary", "ffmpeg")
	viper.SetDefault("transcript.ffprobe-binary", "ffprobe")
	viper.SetDefault("transcript.whisper-binary", "whisper-cli")
	viper.SetDefault("transcript.whisper-model", "models/ggml-base.en.bin")
	viper.SetDefault("transcript.whisper-threads", 4)
	viper.SetDefault("transcript.whisper-processors", 1)
	viper.SetDefault("transcript.max-audio-duration", "3h")
	viper.SetDefault("transcript.command-timeout", "30m")

	// Language models
	viper.SetDefault("llm.preferred-provider", "openai")
	viper.SetDefault("llm.fallback-order", Providers)
	viper.SetDefault("llm.timeout", "2m")
	viper.SetDefault("llm.max-transcript-chars", DefaultMaxTranscriptChars)
	viper.SetDefault("llm.rates-file", "")
	viper.SetDefault("llm.monthly-budget", 0.0)
	viper.SetDefault("llm.openai.api-key", "")
	viper.SetDefault("llm.openai.base-url", "")
	viper.SetDefault("llm.openai.models.fast", "gpt-4o-mini")
	viper.SetDefault("llm.openai.models.balanced", "gpt-4o-mini")
	viper.SetDefault("llm.openai.models.advanced", "gpt-4o")
	viper.SetDefault("llm.gemini.api-keys", []string{})
	viper.SetDefault("llm.gemini.models.fast", "gemini-2.0-flash")
	viper.SetDefault("llm.gemini.models.balanced", "gemini-1.5-flash")
	viper.SetDefault("llm.gemini.models.advanced", "gemini-1.5-pro")

	// Pipeline
	viper.SetDefault("pipeline.source", DefaultSource)
	viper.SetDefault("pipeline.max-retries", DefaultMaxRetries)
	viper.SetDefault("pipeline.retain-error-details", false)
	viper.SetDefault("pipeline.unit-timeout", "15m")

	// Batch
	viper.SetDefault("batch.max-concurrent", DefaultMaxConcurrent)
	viper.SetDefault("batch.chunk-delay", DefaultChunkDelay.String())
	viper.SetDefault("batch.max-references", DefaultMaxReferences)
	viper.SetDefault("batch.max-items-per-container", DefaultMaxItemsPerContainer)
	viper.SetDefault("batch.expand-concurrency", DefaultExpandConcurrency)

	viper.SetDefault("report.dir", DefaultReportDir)
}

// bindWellKnownEnv lets provider keys come from their conventional variables
func bindWellKnownEnv() {
	viper.BindEnv("youtube.api-key", "MEDIA_DIGEST_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")
	viper.BindEnv("llm.openai.api-key", "MEDIA_DIGEST_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("llm.openai.base-url", "MEDIA_DIGEST_LLM_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	viper.BindEnv("llm.gemini.api-keys", "MEDIA_DIGEST_LLM_GEMINI_API_KEYS", "GEMINI_API_KEYS", "GEMINI_API_KEY")
	viper.BindEnv("store.dsn", "MEDIA_DIGEST_STORE_DSN", "DATABASE_URL")
}

// LoadConfig loads configuration from various sources
func LoadConfig() (*Config, error) {
	SetDefaults()

	// Set config name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.media-digest")
	viper.AddConfigPath("/etc/media-digest/")

	// Enable environment variable support
	viper.SetEnvPrefix("MEDIA_DIGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	bindWellKnownEnv()

	// Try to read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is okay, we'll use defaults and CLI flags
	}

	var config Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&config, decodeHook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Post-process configuration
	if err := postProcessConfig(&config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	return &config, nil
}

// postProcessConfig performs validation and adjustments to the configuration
func postProcessConfig(config *Config) error {
	if config.Store.Backend == StoreBackendPostgres && config.Store.DSN == "" {
		return utils.NewConfigError("store.dsn is required for the postgres backend")
	}

	switch config.Archive.Backend {
	case "", "none", "aws", "local":
	default:
		return utils.NewConfigError(fmt.Sprintf("invalid archive.backend: %s, must be one of: none, aws, local", config.Archive.Backend))
	}
	if (config.Archive.Backend == "aws" || config.Archive.Backend == "local") && config.Archive.Bucket == "" {
		return utils.NewConfigError("archive.bucket is required when the archive is enabled")
	}

	for key, value := range map[string]string{
		"youtube.api-base-url":   config.YouTube.APIBaseURL,
		"youtube.watch-base-url": config.YouTube.WatchBaseURL,
	} {
		if err := utils.ValidateURL(value); err != nil {
			return utils.NewValidationError(key, err.Error())
		}
	}
	if config.LLM.OpenAI.BaseURL != "" {
		if err := utils.ValidateURL(config.LLM.OpenAI.BaseURL); err != nil {
			return utils.NewValidationError("llm.openai.base-url", err.Error())
		}
	}

	config.Transcript.Languages = normalizeList(config.Transcript.Languages)
	if len(config.Transcript.Languages) == 0 {
		config.Transcript.Languages = []string{"en"}
	}

	config.LLM.PreferredProvider = strings.ToLower(strings.TrimSpace(config.LLM.PreferredProvider))
	if config.LLM.PreferredProvider != "" && !contains(Providers, config.LLM.PreferredProvider) {
		return fmt.Errorf("invalid llm.preferred-provider: %s, must be one of: %s",
			config.LLM.PreferredProvider, strings.Join(Providers, ", "))
	}

	config.LLM.FallbackOrder = normalizeList(config.LLM.FallbackOrder)
	for _, name := range config.LLM.FallbackOrder {
		if !contains(Providers, name) {
			return fmt.Errorf("invalid provider in llm.fallback-order: %s, must be one of: %s",
				name, strings.Join(Providers, ", "))
		}
	}
	config.LLM.Gemini.APIKeys = normalizeKeys(config.LLM.Gemini.APIKeys)

	if config.LLM.MonthlyBudget < 0 {
		return utils.NewValidationError("llm.monthly-budget", "must not be negative")
	}
	if config.LLM.MaxTranscriptChars <= 0 {
		config.LLM.MaxTranscriptChars = DefaultMaxTranscriptChars
	}

	if config.Pipeline.Source == "" {
		config.Pipeline.Source = DefaultSource
	}
	if config.Pipeline.MaxRetries <= 0 {
		config.Pipeline.MaxRetries = DefaultMaxRetries
	}

	// Validate batch limits
	if config.Batch.MaxConcurrent <= 0 {
		config.Batch.MaxConcurrent = DefaultMaxConcurrent
	}
	if config.Batch.ChunkDelay < 0 {
		config.Batch.ChunkDelay = DefaultChunkDelay
	}
	if config.Batch.MaxReferences <= 0 || config.Batch.MaxReferences > DefaultMaxReferences {
		config.Batch.MaxReferences = DefaultMaxReferences
	}
	if config.Batch.MaxItemsPerContainer <= 0 {
		config.Batch.MaxItemsPerContainer = DefaultMaxItemsPerContainer
	}
	if config.Batch.ExpandConcurrency <= 0 {
		config.Batch.ExpandConcurrency = DefaultExpandConcurrency
	}

	return nil
}

// normalizeList lower-cases and trims entries, splitting comma-joined values
func normalizeList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range utils.SplitAndTrim(value, ",") {
			result = append(result, strings.ToLower(part))
		}
	}
	return result
}

// normalizeKeys trims entries, splitting comma-joined values
func normalizeKeys(values []string) []string {
	var result []string
	for _, value := range values {
		result = append(result, utils.SplitAndTrim(value, ",")...)
	}
	return result
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// SetupLogging configures logging. When logFile is set, output is also
// written to a timestamped file in the working directory.
func SetupLogging(verbose, logFile bool) (*zap.Logger, error) {
	var config zap.Config

	if verbose {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Customize output format
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.MessageKey = "message"

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	var path string
	if logFile {
		path = fmt.Sprintf("digest_%s.log", time.Now().Format("20060102_150405"))
		config.OutputPaths = append(config.OutputPaths, path)
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, path)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Debug("Logging initialized",
		zap.String("level", config.Level.String()),
		zap.String("log_file", path),
	)

	return logger, nil
}
