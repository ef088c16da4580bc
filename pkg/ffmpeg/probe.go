// Package ffmpeg wraps the ffprobe and ffmpeg binaries used to prepare
// downloaded audio for transcription.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrNoAudioStream is returned when a file carries no audio stream
var ErrNoAudioStream = errors.New("no audio stream")

// AudioInfo describes the audio stream of a media file
type AudioInfo struct {
	Filename   string        `json:"filename"`
	Format     string        `json:"format"`
	Duration   time.Duration `json:"duration"`
	Size       int64         `json:"size"`
	Codec      string        `json:"codec"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Bitrate    int64         `json:"bitrate"`
}

type probeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Duration   string `json:"duration,omitempty"`
	BitRate    string `json:"bit_rate,omitempty"`
}

type probeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Runner executes an external command and returns its stdout. Tests swap it
// for a fake.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec, folding stderr into the error
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, lastLines(stderr.String(), 5))
	}
	return stdout.Bytes(), nil
}

// Tool drives ffprobe and ffmpeg
type Tool struct {
	ffprobePath string
	ffmpegPath  string
	timeout     time.Duration
	run         Runner
	logger      *zap.Logger
}

// Option customizes a Tool
type Option func(*Tool)

// WithRunner replaces the command runner
func WithRunner(run Runner) Option {
	return func(t *Tool) {
		t.run = run
	}
}

// New creates a Tool. Empty paths fall back to the binaries on PATH.
func New(ffprobePath, ffmpegPath string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Tool {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	t := &Tool{
		ffprobePath: ffprobePath,
		ffmpegPath:  ffmpegPath,
		timeout:     timeout,
		run:         ExecRunner,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ProbeAudio reads format and audio stream information from filePath
func (t *Tool) ProbeAudio(ctx context.Context, filePath string) (*AudioInfo, error) {
	t.logger.Debug("Probing audio", zap.String("file", filePath))

	timeoutCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.run(timeoutCtx, t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath)
	if err != nil {
		return nil, err
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &AudioInfo{
		Filename: filePath,
		Format:   probe.Format.FormatName,
		Duration: parseSeconds(probe.Format.Duration),
	}
	if size, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
		info.Size = size
	}
	if bitrate, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = bitrate
	}

	found := false
	for _, stream := range probe.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		found = true
		info.Codec = stream.CodecName
		info.Channels = stream.Channels
		if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
			info.SampleRate = rate
		}
		if info.Duration == 0 {
			info.Duration = parseSeconds(stream.Duration)
		}
		break
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", filePath, ErrNoAudioStream)
	}

	t.logger.Debug("Audio probe complete",
		zap.String("file", filePath),
		zap.Duration("duration", info.Duration),
		zap.String("codec", info.Codec),
		zap.Int("sample_rate", info.SampleRate))

	return info, nil
}

func parseSeconds(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
