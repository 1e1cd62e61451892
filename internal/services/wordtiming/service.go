package wordtiming

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"wordsync/internal/fileutil"
	"wordsync/internal/logging"
	"wordsync/internal/services"
	"wordsync/internal/services/llm"
	"wordsync/internal/timing"
)

const stageName = "gemini"

// DefaultClipPadding is added on both sides of the subtitle window.
const DefaultClipPadding = 0.25

// Request identifies one subtitle window to time.
type Request struct {
	AudioPath    string
	Text         string
	SegmentStart float64
	SegmentEnd   float64
}

// Completer sends a prompt with an audio attachment and returns JSON text.
type Completer interface {
	CompleteJSONWithAudio(ctx context.Context, systemPrompt, userPrompt string, audio llm.AudioInput) (string, error)
}

// ClipExtractor cuts a time window out of an audio file.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, source string, startSec, durationSec float64, dest string) error
}

// TempFiles hands out scratch paths for clips.
type TempFiles interface {
	NewPath(ext string) string
	DeleteTempFile(path string) fileutil.DeleteResult
}

// Service implements the fallback word-timing lookup.
type Service struct {
	completer Completer
	clips     ClipExtractor
	temp      TempFiles
	padding   float64
	logger    *slog.Logger
}

// NewService wires the fallback service. A negative padding selects
// DefaultClipPadding.
func NewService(completer Completer, clips ClipExtractor, temp TempFiles, padding float64, logger *slog.Logger) *Service {
	if padding < 0 {
		padding = DefaultClipPadding
	}
	return &Service{
		completer: completer,
		clips:     clips,
		temp:      temp,
		padding:   padding,
		logger:    logging.NewComponentLogger(logger, "wordtiming"),
	}
}

type modelPayload struct {
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// GetWordTimings returns absolute word timings for req. Entries the model
// returns with empty text or inverted times are dropped. Errors carry the
// services.ErrFallback marker.
func (s *Service) GetWordTimings(ctx context.Context, req Request) ([]timing.TranscriptionWord, error) {
	text := strings.TrimSpace(req.Text)
	switch {
	case strings.TrimSpace(req.AudioPath) == "":
		return nil, services.Wrap(services.ErrFallback, stageName, "validate", "audio path required", nil)
	case text == "":
		return nil, services.Wrap(services.ErrFallback, stageName, "validate", "text required", nil)
	case req.SegmentEnd <= req.SegmentStart:
		return nil, services.Wrap(services.ErrFallback, stageName, "validate",
			fmt.Sprintf("empty window [%.3f, %.3f]", req.SegmentStart, req.SegmentEnd), nil)
	}

	clipStart := max(req.SegmentStart-s.padding, 0)
	clipEnd := req.SegmentEnd + s.padding
	clipDuration := clipEnd - clipStart

	clipPath := s.temp.NewPath(".wav")
	defer func() {
		if res := s.temp.DeleteTempFile(clipPath); !res.Success {
			s.logger.Debug("clip cleanup failed", logging.String("path", clipPath), logging.Error(res.Err))
		}
	}()

	if err := s.clips.ExtractClip(ctx, req.AudioPath, clipStart, clipDuration, clipPath); err != nil {
		return nil, services.Wrap(services.ErrFallback, stageName, "extract clip", "ffmpeg failed", err)
	}
	data, err := os.ReadFile(clipPath)
	if err != nil {
		return nil, services.Wrap(services.ErrFallback, stageName, "read clip", clipPath, err)
	}

	content, err := s.completer.CompleteJSONWithAudio(ctx, systemPrompt, buildUserPrompt(text, clipDuration),
		llm.AudioInput{Data: data, Format: "wav"})
	if err != nil {
		return nil, services.Wrap(services.ErrFallback, stageName, "request", "model call failed", err)
	}

	var payload modelPayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrFallback, stageName, "decode", "invalid model payload", err)
	}

	words := make([]timing.TranscriptionWord, 0, len(payload.Words))
	dropped := 0
	for _, w := range payload.Words {
		token := strings.TrimSpace(w.Word)
		if token == "" || w.Start < 0 || w.End < w.Start {
			dropped++
			continue
		}
		words = append(words, timing.TranscriptionWord{
			Word:  token,
			Start: clipStart + w.Start,
			End:   clipStart + w.End,
		})
	}
	if dropped > 0 {
		s.logger.Debug("dropped invalid fallback words",
			logging.Int("dropped", dropped),
			logging.Int("kept", len(words)),
		)
	}
	return words, nil
}
