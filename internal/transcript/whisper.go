package transcript

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/pkg/ffmpeg"
)

// WhisperConfig configures the whisper.cpp fallback
type WhisperConfig struct {
	YtDlpBinary      string
	WhisperBinary    string
	Model            string
	Threads          int
	Processors       int
	WorkDir          string
	WatchBaseURL     string
	Language         string
	MaxAudioDuration time.Duration
	CommandTimeout   time.Duration
}

// WhisperCLI downloads the audio track with yt-dlp, converts it to 16 kHz
// mono and transcribes it with whisper.cpp
type WhisperCLI struct {
	config WhisperConfig
	audio  *ffmpeg.Tool
	run    ffmpeg.Runner
	logger *zap.Logger
}

// NewWhisperCLI creates the audio fallback. run executes yt-dlp and whisper;
// nil uses ffmpeg.ExecRunner.
func NewWhisperCLI(config WhisperConfig, audio *ffmpeg.Tool, run ffmpeg.Runner, logger *zap.Logger) *WhisperCLI {
	if config.YtDlpBinary == "" {
		config.YtDlpBinary = "yt-dlp"
	}
	if config.Threads <= 0 {
		config.Threads = 4
	}
	if config.Processors <= 0 {
		config.Processors = 1
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 30 * time.Minute
	}
	if config.Language == "" {
		config.Language = languageFromModel(config.Model)
	}
	if run == nil {
		run = ffmpeg.ExecRunner
	}
	return &WhisperCLI{
		config: config,
		audio:  audio,
		run:    run,
		logger: logger,
	}
}

// Transcribe runs the whole audio pipeline for itemID. Every failure wraps
// ErrTranscriptionFailed.
func (w *WhisperCLI) Transcribe(ctx context.Context, itemID string) (*Fetched, error) {
	fetched, err := w.transcribe(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	return fetched, nil
}

func (w *WhisperCLI) transcribe(ctx context.Context, itemID string) (*Fetched, error) {
	if w.config.Model == "" {
		return nil, errors.New("no whisper model configured")
	}

	dir, err := os.MkdirTemp(w.config.WorkDir, "whisper-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			w.logger.Warn("Failed to clean whisper work dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, w.config.CommandTimeout)
	defer cancel()

	downloaded := filepath.Join(dir, itemID+".wav")
	watchURL := fmt.Sprintf("%s/watch?v=%s", strings.TrimRight(w.config.WatchBaseURL, "/"), itemID)

	w.logger.Info("Downloading audio for transcription", zap.String("item_id", itemID))
	if _, err := w.run(ctx, w.config.YtDlpBinary,
		"-f", "bestaudio",
		"--ignore-config",
		"--no-progress",
		"--no-playlist",
		"--output", downloaded,
		"--extract-audio",
		"--audio-format", "wav",
		watchURL); err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	if w.config.MaxAudioDuration > 0 {
		info, err := w.audio.ProbeAudio(ctx, downloaded)
		if err != nil {
			return nil, err
		}
		if info.Duration > w.config.MaxAudioDuration {
			return nil, fmt.Errorf("audio is %s long, limit is %s", info.Duration, w.config.MaxAudioDuration)
		}
	}

	converted := filepath.Join(dir, itemID+".16k.wav")
	if err := w.audio.ConvertToWav16k(ctx, downloaded, converted); err != nil {
		return nil, err
	}

	w.logger.Info("Running whisper", zap.String("item_id", itemID), zap.String("model", w.config.Model))
	if _, err := w.run(ctx, w.config.WhisperBinary,
		"-m", w.config.Model,
		"-f", converted,
		"-ocsv",
		"-t", strconv.Itoa(w.config.Threads),
		"-p", strconv.Itoa(w.config.Processors)); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	fh, err := os.Open(converted + ".csv")
	if err != nil {
		return nil, fmt.Errorf("opening whisper output: %w", err)
	}
	defer fh.Close()

	segments, err := parseWhisperCSV(fh)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, errors.New("whisper produced no segments")
	}

	return &Fetched{Segments: segments, Language: w.config.Language}, nil
}

// parseWhisperCSV reads whisper.cpp -ocsv output: a header row, then
// start,end,text with times in milliseconds.
func parseWhisperCSV(r io.Reader) ([]model.Segment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading header row of whisper csv: %w", err)
	}

	var segments []model.Segment
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading whisper csv: %w", err)
		}

		start, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("whisper csv start %q: %w", row[0], err)
		}
		end, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("whisper csv end %q: %w", row[1], err)
		}

		segments = append(segments, model.Segment{
			Start: start / 1000,
			End:   end / 1000,
			Text:  strings.TrimSpace(row[2]),
		})
	}
	return segments, nil
}

// languageFromModel reads the language of English-only ggml models
func languageFromModel(modelPath string) string {
	if strings.Contains(filepath.Base(modelPath), ".en.") {
		return "en"
	}
	return ""
}

// Unavailable is the fallback used when no audio transcriber is configured
type Unavailable struct{}

// Transcribe always fails with ErrTranscriptionFailed
func (Unavailable) Transcribe(ctx context.Context, itemID string) (*Fetched, error) {
	return nil, fmt.Errorf("%w: audio fallback is not configured", ErrTranscriptionFailed)
}
