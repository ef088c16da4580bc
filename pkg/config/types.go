package config

import (
	"time"
)

// StoreBackend selects the content store implementation
type StoreBackend int

const (
	StoreBackendMemory StoreBackend = iota
	StoreBackendPostgres
)

// String returns the string representation of StoreBackend
func (s StoreBackend) String() string {
	switch s {
	case StoreBackendMemory:
		return "memory"
	case StoreBackendPostgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (s *StoreBackend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "memory":
		*s = StoreBackendMemory
	case "postgres", "postgresql":
		*s = StoreBackendPostgres
	default:
		return &unknownValueError{field: "store.backend", value: string(text)}
	}
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface
func (s StoreBackend) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FallbackMode selects the audio transcription fallback
type FallbackMode int

const (
	FallbackNone FallbackMode = iota
	FallbackWhisper
)

// String returns the string representation of FallbackMode
func (f FallbackMode) String() string {
	switch f {
	case FallbackNone:
		return "none"
	case FallbackWhisper:
		return "whisper"
	default:
		return "unknown"
	}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (f *FallbackMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "none":
		*f = FallbackNone
	case "whisper":
		*f = FallbackWhisper
	default:
		return &unknownValueError{field: "transcript.fallback", value: string(text)}
	}
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface
func (f FallbackMode) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

type unknownValueError struct {
	field string
	value string
}

func (e *unknownValueError) Error() string {
	return "unknown " + e.field + " value: " + e.value
}

// Config holds all configuration for the application
type Config struct {
	Verbose bool `mapstructure:"verbose"`

	Store      StoreConfig      `mapstructure:"store"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Cache      CacheConfig      `mapstructure:"cache"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Report     ReportConfig     `mapstructure:"report"`
}

// StoreConfig configures the content store
type StoreConfig struct {
	Backend      StoreBackend  `mapstructure:"backend"`
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max-open-conns"`
	AutoMigrate  bool          `mapstructure:"auto-migrate"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
}

// ArchiveConfig configures where transcripts and analyses are archived
type ArchiveConfig struct {
	Backend  string        `mapstructure:"backend"`
	Bucket   string        `mapstructure:"bucket"`
	Prefix   string        `mapstructure:"prefix"`
	Region   string        `mapstructure:"region"`
	Profile  string        `mapstructure:"profile"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures the on-disk caption cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// YouTubeConfig configures the metadata provider and caption source
type YouTubeConfig struct {
	APIKey        string        `mapstructure:"api-key"`
	APIBaseURL    string        `mapstructure:"api-base-url"`
	WatchBaseURL  string        `mapstructure:"watch-base-url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry-attempts"`
}

// TranscriptConfig configures transcript acquisition
type TranscriptConfig struct {
	Languages         []string      `mapstructure:"languages"`
	StrictLanguages   bool          `mapstructure:"strict-languages"`
	Fallback          FallbackMode  `mapstructure:"fallback"`
	WorkDir           string        `mapstructure:"work-dir"`
	YtDlpBinary       string        `mapstructure:"yt-dlp-binary"`
	FFmpegBinary      string        `mapstructure:"ffmpeg-binary"`
	FFprobeBinary     string        `mapstructure:"ffprobe-binary"`
	WhisperBinary     string        `mapstructure:"whisper-binary"`
	WhisperModel      string        `mapstructure:"whisper-model"`
	WhisperThreads    int           `mapstructure:"whisper-threads"`
	WhisperProcessors int           `mapstructure:"whisper-processors"`
	MaxAudioDuration  time.Duration `mapstructure:"max-audio-duration"`
	CommandTimeout    time.Duration `mapstructure:"command-timeout"`
}

// LLMConfig configures the language-model providers
type LLMConfig struct {
	PreferredProvider  string        `mapstructure:"preferred-provider"`
	FallbackOrder      []string      `mapstructure:"fallback-order"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxTranscriptChars int           `mapstructure:"max-transcript-chars"`
	RatesFile          string        `mapstructure:"rates-file"`
	MonthlyBudget      float64       `mapstructure:"monthly-budget"`
	OpenAI             OpenAIConfig  `mapstructure:"openai"`
	Gemini             GeminiConfig  `mapstructure:"gemini"`
}

// ModelTiers names the model used for each content-size tier
type ModelTiers struct {
	Fast     string `mapstructure:"fast"`
	Balanced string `mapstructure:"balanced"`
	Advanced string `mapstructure:"advanced"`
}

// OpenAIConfig configures the OpenAI-compatible provider
type OpenAIConfig struct {
	APIKey  string     `mapstructure:"api-key"`
	BaseURL string     `mapstructure:"base-url"`
	Models  ModelTiers `mapstructure:"models"`
}

// GeminiConfig configures the Gemini provider
type GeminiConfig struct {
	APIKeys []string   `mapstructure:"api-keys"`
	Models  ModelTiers `mapstructure:"models"`
}

// PipelineConfig configures the per-unit orchestrator
type PipelineConfig struct {
	Source             string        `mapstructure:"source"`
	MaxRetries         int           `mapstructure:"max-retries"`
	RetainErrorDetails bool          `mapstructure:"retain-error-details"`
	UnitTimeout        time.Duration `mapstructure:"unit-timeout"`
}

// BatchConfig configures the batch coordinator
type BatchConfig struct {
	MaxConcurrent        int           `mapstructure:"max-concurrent"`
	ChunkDelay           time.Duration `mapstructure:"chunk-delay"`
	MaxReferences        int           `mapstructure:"max-references"`
	MaxItemsPerContainer int           `mapstructure:"max-items-per-container"`
	ExpandConcurrency    int           `mapstructure:"expand-concurrency"`
}

// ReportConfig configures generated reports
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}
