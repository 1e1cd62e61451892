package whisperx

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRunner executes an external command. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Extractor produces mono 16 kHz WAV files with ffmpeg.
type Extractor struct {
	ffmpegBinary  string
	audioIndex    int
	commandRunner CommandRunner
}

// NewExtractor builds an extractor for the given ffmpeg binary and source
// audio stream index.
func NewExtractor(ffmpegBinary string, audioIndex int) *Extractor {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	return &Extractor{ffmpegBinary: ffmpegBinary, audioIndex: audioIndex}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner CommandRunner) {
	e.commandRunner = runner
}

// AudioTrack returns the configured audio-relative stream index. Negative
// values mean the caller selects the track per source.
func (e *Extractor) AudioTrack() int {
	return e.audioIndex
}

// ExtractTrack extracts the whole audio stream 0:a:track of source into dest.
func (e *Extractor) ExtractTrack(ctx context.Context, source string, track int, dest string) error {
	if track < 0 {
		return fmt.Errorf("extract audio: invalid audio track index %d", track)
	}
	return e.run(ctx, buildFFmpegExtractArgs(source, track, -1, -1, dest))
}

// ExtractClip extracts [startSec, startSec+durationSec) of the first audio
// stream in source. Source is usually an already extracted WAV.
func (e *Extractor) ExtractClip(ctx context.Context, source string, startSec, durationSec float64, dest string) error {
	if durationSec <= 0 {
		return fmt.Errorf("extract clip: invalid duration %.3f", durationSec)
	}
	if startSec < 0 {
		startSec = 0
	}
	return e.run(ctx, buildFFmpegExtractArgs(source, 0, startSec, durationSec, dest))
}

func (e *Extractor) run(ctx context.Context, args []string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, e.ffmpegBinary, args...)
	}
	cmd := exec.CommandContext(ctx, e.ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildFFmpegExtractArgs renders the ffmpeg arguments. A negative start or
// duration extracts the whole stream.
func buildFFmpegExtractArgs(source string, audioIndex int, startSec, durationSec float64, dest string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
	}
	if startSec >= 0 && durationSec > 0 {
		args = append(args,
			"-ss", formatSeconds(startSec),
			"-t", formatSeconds(durationSec),
		)
	}
	args = append(args,
		"-i", source,
		"-map", fmt.Sprintf("0:a:%d", audioIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)
	return args
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
