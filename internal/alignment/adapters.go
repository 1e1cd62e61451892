package alignment

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"wordsync/internal/config"
	"wordsync/internal/fileutil"
	"wordsync/internal/logging"
	"wordsync/internal/media/audio"
	"wordsync/internal/media/ffprobe"
	"wordsync/internal/services"
	"wordsync/internal/services/llm"
	"wordsync/internal/services/whisperx"
	"wordsync/internal/services/wordtiming"
	"wordsync/internal/timing"
)

// WhisperXAligner adapts the WhisperX JSON-RPC client to Aligner.
type WhisperXAligner struct {
	Client *whisperx.Client
}

// Align implements Aligner.
func (a WhisperXAligner) Align(ctx context.Context, audioPath string, segs []Segment) ([]AlignedSegment, error) {
	req := make([]whisperx.Segment, len(segs))
	for i, s := range segs {
		req[i] = whisperx.Segment{Text: s.Text, Start: s.Start, End: s.End}
	}
	resp, err := a.Client.Align(ctx, audioPath, req)
	if err != nil {
		return nil, err
	}
	out := make([]AlignedSegment, len(resp))
	for i, s := range resp {
		words := make([]timing.TranscriptionWord, len(s.Words))
		for j, w := range s.Words {
			words[j] = timing.TranscriptionWord{Word: w.Word, Start: w.Start, End: w.End, Score: w.Score}
		}
		out[i] = AlignedSegment{Start: s.Start, End: s.End, Text: s.Text, Words: words}
	}
	return out, nil
}

// TrackSelector picks the audio-relative stream index to extract from a video.
type TrackSelector func(ctx context.Context, videoPath string) (int, error)

// FFmpegExtractor adapts the ffmpeg extractor to AudioExtractor.
type FFmpegExtractor struct {
	Extractor *whisperx.Extractor
	// SelectTrack is consulted when the extractor has no fixed track.
	SelectTrack TrackSelector
}

// ExtractAudio implements AudioExtractor.
func (e FFmpegExtractor) ExtractAudio(ctx context.Context, videoPath, outputPath string) (string, error) {
	track := e.Extractor.AudioTrack()
	if track < 0 && e.SelectTrack != nil {
		selected, err := e.SelectTrack(ctx, videoPath)
		if err != nil {
			return "", err
		}
		track = selected
	}
	if err := e.Extractor.ExtractTrack(ctx, videoPath, track, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// LanguageTrackSelector probes videoPath with ffprobe and selects the audio
// stream tagged with lang. Streams without a match fall back to the best
// untagged candidate.
func LanguageTrackSelector(ffprobeBinary, lang string, run ffprobe.Runner, logger *slog.Logger) TrackSelector {
	logger = logging.NewComponentLogger(logger, "track-select")
	return func(ctx context.Context, videoPath string) (int, error) {
		probe, err := ffprobe.Inspect(ctx, ffprobeBinary, videoPath, run)
		if err != nil {
			return 0, services.Wrap(services.ErrExternalTool, "extraction", "probe audio tracks", "Failed to inspect the video's audio tracks", err)
		}
		sel, err := audio.Select(probe.Streams, lang)
		if err != nil {
			return 0, services.Wrap(services.ErrValidation, "extraction", "select audio track", "The video has no audio track", err)
		}
		if !sel.LanguageMatched {
			logging.WarnWithContext(logger, "no audio track matches alignment language", "audio_track_fallback",
				logging.String("language", lang),
				logging.String(logging.FieldImpact, "alignment may run against the wrong dialogue"),
				logging.String(logging.FieldErrorHint, "set extraction.audio_track explicitly"),
			)
		}
		logger.Info("selected audio track",
			logging.String(logging.FieldEventType, "audio_track_selected"),
			logging.Int("track", sel.Track),
			logging.String("stream", sel.Label()),
		)
		return sel.Track, nil
	}
}

// WordTimingFallback adapts the fallback word-timing service to FallbackTimer.
type WordTimingFallback struct {
	Service *wordtiming.Service
}

// GetWordTimings implements FallbackTimer.
func (f WordTimingFallback) GetWordTimings(ctx context.Context, req FallbackRequest) ([]timing.TranscriptionWord, error) {
	return f.Service.GetWordTimings(ctx, wordtiming.Request{
		AudioPath:    req.AudioPath,
		Text:         req.Text,
		SegmentStart: req.SegmentStart,
		SegmentEnd:   req.SegmentEnd,
	})
}

// FallbackLimiter converts a requests-per-minute budget into a limiter with a
// burst of one. Non-positive values disable pacing.
func FallbackLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// Runtime bundles an orchestrator with the service process it owns.
type Runtime struct {
	*Orchestrator
	client *whisperx.Client
}

// Close stops the alignment service process.
func (r *Runtime) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// NewFromConfig wires the production services described by cfg around store.
func NewFromConfig(cfg *config.Config, store SubtitleStore, logger *slog.Logger, progress ProgressFunc, serviceProgress func(whisperx.Progress)) *Runtime {
	client := whisperx.NewClient(whisperx.Config{
		PythonBinary:   cfg.Alignment.PythonBinary,
		Module:         cfg.Alignment.Module,
		Model:          cfg.Alignment.Model,
		Language:       cfg.Alignment.Language,
		Device:         cfg.Alignment.Device,
		ComputeType:    cfg.Alignment.ComputeType,
		HFToken:        cfg.Alignment.HFToken,
		StartupTimeout: time.Duration(cfg.Alignment.StartupTimeoutSeconds) * time.Second,
	}, logger, whisperx.WithProgressHandler(serviceProgress))
	extractor := whisperx.NewExtractor(cfg.FFmpegBinary(), cfg.Extraction.AudioTrack)
	temp := fileutil.NewTempFiles(cfg.Paths.TempDir, "wordsync")

	extraction := FFmpegExtractor{Extractor: extractor}
	if cfg.Extraction.AudioTrack < 0 {
		extraction.SelectTrack = LanguageTrackSelector(cfg.FFprobeBinary(), cfg.Alignment.Language, nil, logger)
	}

	opts := []Option{
		WithLogger(logger),
		WithProgress(progress),
		WithRateLimiter(FallbackLimiter(cfg.Fallback.RequestsPerMinute)),
	}
	if cfg.Fallback.Enabled && cfg.Fallback.APIKey != "" {
		llmCfg := cfg.FallbackLLM()
		completer := llm.NewClient(llm.Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: llmCfg.TimeoutSeconds,
		})
		svc := wordtiming.NewService(completer, extractor, temp, cfg.Fallback.ClipPaddingSeconds, logger)
		opts = append(opts, WithFallback(WordTimingFallback{Service: svc}))
	}

	orch := New(WhisperXAligner{Client: client}, extraction, temp, store, opts...)
	return &Runtime{Orchestrator: orch, client: client}
}
