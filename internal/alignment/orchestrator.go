package alignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wordsync/internal/logging"
	"wordsync/internal/services"
	"wordsync/internal/subtitle"
	"wordsync/internal/timing"
)

// Orchestrator reconciles accepted text changes with the audio: it aligns
// every corrected subtitle, validates the result, asks the fallback service
// about implausible segments and commits the final word timings.
type Orchestrator struct {
	aligner   Aligner
	extractor AudioExtractor
	fallback  FallbackTimer
	temp      TempFileManager
	store     SubtitleStore
	limiter   *rate.Limiter
	progress  ProgressFunc
	logger    *slog.Logger
	newID     func() string

	runMu sync.Mutex
	stage atomic.Value
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithFallback enables the per-segment fallback pass.
func WithFallback(f FallbackTimer) Option {
	return func(o *Orchestrator) {
		o.fallback = f
	}
}

// WithRateLimiter paces fallback requests.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithProgress registers the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.NewComponentLogger(logger, "orchestrator")
	}
}

// New builds an orchestrator. Without WithFallback, segments failing
// validation keep their alignment result.
func New(aligner Aligner, extractor AudioExtractor, temp TempFileManager, store SubtitleStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		aligner:   aligner,
		extractor: extractor,
		temp:      temp,
		store:     store,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    logging.NewComponentLogger(nil, "orchestrator"),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.stage.Store(StageIdle)
	return o
}

// Stage returns the state of the current or most recent run.
func (o *Orchestrator) Stage() Stage {
	return o.stage.Load().(Stage)
}

// item is one accepted change resolved against the project snapshot.
type item struct {
	change   subtitle.Change
	original subtitle.Subtitle
	next     *timing.Bounds
	segment  Segment
}

// Reconcile runs one batch. Runs on the same Orchestrator are serialised.
//
// A batch-level alignment failure (primary call and retry with freshly
// extracted audio) returns an ErrAlignment-marked error before any subtitle
// is touched. Fallback failures are logged and never abort the batch.
// Cancelling ctx before the applying stage leaves the store untouched; during
// applying it stops further commits.
func (o *Orchestrator) Reconcile(ctx context.Context, project *subtitle.Project, changes []subtitle.Change) (Report, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	report := Report{CorrelationID: o.newID()}
	ctx = services.WithRequestID(ctx, report.CorrelationID)
	if project != nil {
		ctx = services.WithProjectID(ctx, project.ID)
	}
	logger := logging.WithContext(ctx, o.logger)
	o.stage.Store(StageIdle)

	fail := func(err error) (Report, error) {
		o.emit(StageError, services.UserMessage(err), 0, 0)
		logging.ErrorWithContext(logger, "reconciliation failed", "reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, errorHint(err)),
		)
		return report, err
	}

	items, err := plan(project, changes)
	if err != nil {
		return fail(err)
	}
	total := len(items)
	segments := make([]Segment, total)
	for i, it := range items {
		segments[i] = it.segment
	}
	logger.Info("reconciliation started", logging.Int("changes", total))

	// Both the requested path and whatever the extractor actually wrote are
	// removed on exit.
	var tempFiles []string
	defer func() {
		for _, path := range tempFiles {
			if res := o.temp.DeleteTempFile(path); !res.Success {
				logger.Debug("temp audio cleanup failed", logging.String("path", path), logging.Error(res.Err))
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	audioPath := strings.TrimSpace(project.AudioPath)
	aligned, err := o.alignPrimary(ctx, audioPath, segments)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		logging.WarnWithContext(logger, "primary alignment failed; extracting fresh audio", "alignment_retry",
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio is re-extracted from the video before one retry"),
			logging.String(logging.FieldErrorHint, "check the project audio path"),
		)

		o.emit(StageExtracting, "Extracting audio from video", 0, total)
		tempAudio := o.temp.NewPath(".wav")
		tempFiles = append(tempFiles, tempAudio)
		extracted, extractErr := o.extractor.ExtractAudio(ctx, project.VideoPath, tempAudio)
		if extracted = strings.TrimSpace(extracted); extracted != "" && extracted != tempAudio {
			tempFiles = append(tempFiles, extracted)
		}
		if extractErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			return fail(services.Wrap(services.ErrAlignment, string(StageExtracting), "extract audio",
				"audio extraction failed", extractErr))
		}
		audioPath = tempAudio
		if extracted != "" {
			audioPath = extracted
		}
		report.AudioExtracted = true

		o.emit(StageWhisperX, fmt.Sprintf("Retrying alignment of %d segments", total), 0, total)
		aligned, err = o.aligner.Align(ctx, audioPath, segments)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			return fail(services.Wrap(services.ErrAlignment, string(StageWhisperX), "align",
				"alignment failed after audio re-extraction", err))
		}
	}

	results := make([]Result, total)
	valid := make([]bool, total)
	var worklist []int
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		o.emit(StageValidating, fmt.Sprintf("Validating segment %d of %d", i+1, total), i+1, total)
		var words []timing.TranscriptionWord
		if i < len(aligned) {
			words = aligned[i].Words
		}
		results[i] = resultFrom(words)
		if timing.IsValid(words, it.segment.Text, it.segment.Start, it.segment.End) {
			valid[i] = true
			continue
		}
		worklist = append(worklist, i)
		logger.Debug("segment failed validation",
			logging.String(logging.FieldSubtitleID, it.change.SubtitleID),
			logging.Int("words", len(words)),
			logging.Int("expected", timing.CountTokens(it.segment.Text)),
		)
	}

	fromFallback := make([]bool, total)
	if len(worklist) > 0 {
		if o.fallback == nil {
			logger.Info("fallback disabled; keeping alignment for invalid segments",
				logging.Int("segments", len(worklist)),
			)
		} else if err := o.runFallback(ctx, logger, audioPath, items, worklist, results, fromFallback); err != nil {
			return fail(err)
		}
	}

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		o.emit(StageApplying, fmt.Sprintf("Updating subtitle %d of %d", i+1, total), i+1, total)

		entry := ChangeReport{SubtitleID: it.change.SubtitleID, Text: it.segment.Text}
		switch results[i].Kind {
		case KindAligned:
			entry.Words = timing.Rescale(timing.FromTranscription(results[i].Words), it.original.Bounds(), it.next)
			entry.Source = SourceAligned
			if fromFallback[i] {
				entry.Source = SourceFallback
			}
			entry.Valid = valid[i] || fromFallback[i]
		default:
			end := math.Min(it.original.End, timing.MaxEndTime(it.original.Bounds(), it.next))
			entry.Words = timing.Redistribute(it.segment.Text, it.original.Start, end, it.original.Words)
			entry.Source = SourceRedistributed
		}

		if err := o.store.UpdateSubtitleWithWords(ctx, it.change.SubtitleID, it.segment.Text, entry.Words); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			return fail(services.Wrap(services.ErrTransient, string(StageApplying), "commit",
				"subtitle "+it.change.SubtitleID, err))
		}
		attrs := logging.DecisionAttrs("timing_source", string(entry.Source), sourceReason(entry, valid[i]))
		attrs = append(attrs,
			logging.String(logging.FieldSubtitleID, it.change.SubtitleID),
			logging.Int("words", len(entry.Words)),
		)
		logger.Debug("subtitle committed", logging.Args(attrs...)...)
		report.Changes = append(report.Changes, entry)
	}

	o.emit(StageComplete, fmt.Sprintf("Updated %d subtitles", total), total, total)
	logger.Info("reconciliation complete",
		logging.Int("aligned", report.Count(SourceAligned)),
		logging.Int("fallback", report.Count(SourceFallback)),
		logging.Int("redistributed", report.Count(SourceRedistributed)),
		logging.Int("invalid_kept", report.Invalid()),
		logging.Bool("audio_extracted", report.AudioExtracted),
	)
	return report, nil
}

// alignPrimary runs the first alignment attempt. A missing audio path counts
// as a failure so the extraction path takes over.
func (o *Orchestrator) alignPrimary(ctx context.Context, audioPath string, segments []Segment) ([]AlignedSegment, error) {
	o.emit(StageWhisperX, fmt.Sprintf("Aligning %d segments", len(segments)), 0, len(segments))
	if audioPath == "" {
		return nil, errors.New("project has no extracted audio")
	}
	return o.aligner.Align(ctx, audioPath, segments)
}

// runFallback asks the fallback service about every segment in worklist, one
// request at a time. Only context cancellation is returned as an error.
func (o *Orchestrator) runFallback(ctx context.Context, logger *slog.Logger, audioPath string, items []item, worklist []int, results []Result, fromFallback []bool) error {
	for k, idx := range worklist {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := items[idx]
		o.emit(StageGemini, fmt.Sprintf("Fallback timing for segment %d of %d", k+1, len(worklist)), k+1, len(worklist))
		if err := o.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		words, err := o.fallback.GetWordTimings(ctx, FallbackRequest{
			AudioPath:    audioPath,
			Text:         it.segment.Text,
			SegmentStart: it.segment.Start,
			SegmentEnd:   it.segment.End,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logging.WarnWithContext(logger, "fallback word timing failed", "fallback_failed",
				logging.String(logging.FieldSubtitleID, it.change.SubtitleID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "segment keeps its original alignment"),
				logging.String(logging.FieldErrorHint, "check fallback API key and model"),
			)
			continue
		}
		if len(words) == 0 {
			logging.WarnWithContext(logger, "fallback returned no words", "fallback_empty",
				logging.String(logging.FieldSubtitleID, it.change.SubtitleID),
				logging.String(logging.FieldImpact, "segment keeps its original alignment"),
			)
			continue
		}
		scored := make([]timing.TranscriptionWord, len(words))
		for j, w := range words {
			w.Score = FallbackConfidence
			scored[j] = w
		}
		results[idx] = Result{Kind: KindAligned, Words: scored}
		fromFallback[idx] = true
	}
	return nil
}

func (o *Orchestrator) emit(stage Stage, message string, current, total int) {
	o.stage.Store(stage)
	if o.progress != nil {
		o.progress(Progress{Stage: stage, Message: message, Current: current, Total: total})
	}
}

// plan resolves accepted changes against the project snapshot.
func plan(project *subtitle.Project, changes []subtitle.Change) ([]item, error) {
	if project == nil {
		return nil, services.Wrap(services.ErrValidation, "plan", "resolve", "project required", nil)
	}
	accepted := subtitle.AcceptedChanges(changes)
	if len(accepted) == 0 {
		return nil, services.Wrap(services.ErrValidation, "plan", "resolve", "no accepted changes", nil)
	}
	// Windows and next-subtitle bounds come from the snapshot taken here, so
	// each subtitle may appear at most once per batch.
	items := make([]item, 0, len(accepted))
	seen := make(map[string]bool, len(accepted))
	for _, change := range accepted {
		sub, ok := project.Lookup(change.SubtitleID)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "plan", "resolve",
				fmt.Sprintf("unknown subtitle %q", change.SubtitleID), nil)
		}
		if seen[sub.ID] {
			return nil, services.Wrap(services.ErrValidation, "plan", "resolve",
				fmt.Sprintf("subtitle %q has more than one accepted change", sub.ID), nil)
		}
		seen[sub.ID] = true
		it := item{
			change:   change,
			original: *sub,
			segment:  Segment{Text: strings.TrimSpace(change.CorrectedText), Start: sub.Start, End: sub.End},
		}
		if next := project.Next(sub.ID); next != nil {
			b := next.Bounds()
			it.next = &b
		}
		items = append(items, it)
	}
	return items, nil
}

func sourceReason(entry ChangeReport, passedValidation bool) string {
	switch {
	case entry.Source == SourceFallback:
		return "alignment failed validation; fallback succeeded"
	case entry.Source == SourceRedistributed:
		return "no words available; redistributed by character length"
	case passedValidation:
		return "alignment passed validation"
	default:
		return "alignment failed validation; fallback unavailable"
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, services.ErrAlignment):
		return "check the alignment service installation and the video path"
	case errors.Is(err, services.ErrValidation):
		return "check that every change references an existing subtitle"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "reconciliation was cancelled; rerun to finish remaining subtitles"
	default:
		return "check logs for details"
	}
}
