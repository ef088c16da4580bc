package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Whisper expects 16 kHz mono signed 16-bit PCM
const (
	WhisperSampleRate = 16000
	WhisperChannels   = 1
)

// ConvertToWav16k re-encodes input into a 16 kHz mono PCM wav at output
func (t *Tool) ConvertToWav16k(ctx context.Context, input, output string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.logger.Debug("Converting audio for transcription",
		zap.String("input", input),
		zap.String("output", output))

	_, err := t.run(timeoutCtx, t.ffmpegPath,
		"-y",
		"-loglevel", "error",
		"-i", input,
		"-ar", fmt.Sprint(WhisperSampleRate),
		"-ac", fmt.Sprint(WhisperChannels),
		"-c:a", "pcm_s16le",
		output)
	if err != nil {
		return fmt.Errorf("converting %s: %w", input, err)
	}
	return nil
}

// lastLines keeps the tail of noisy tool output for error messages
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
