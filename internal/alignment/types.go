package alignment

import (
	"context"

	"wordsync/internal/fileutil"
	"wordsync/internal/timing"
)

// FallbackConfidence is assigned to every word supplied by the fallback
// service, which reports no confidence of its own.
const FallbackConfidence = 0.9

// Segment is one subtitle window submitted for alignment.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// AlignedSegment is the alignment service's answer for one Segment.
type AlignedSegment struct {
	Start float64
	End   float64
	Text  string
	Words []timing.TranscriptionWord
}

// ResultKind discriminates Result.
type ResultKind int

const (
	// KindEmpty means no usable words were produced for the segment.
	KindEmpty ResultKind = iota
	// KindAligned means Words holds at least one timed word.
	KindAligned
)

func (k ResultKind) String() string {
	if k == KindAligned {
		return "aligned"
	}
	return "empty"
}

// Result is the per-segment timing outcome carried between stages.
type Result struct {
	Kind  ResultKind
	Words []timing.TranscriptionWord
}

func resultFrom(words []timing.TranscriptionWord) Result {
	if len(words) == 0 {
		return Result{Kind: KindEmpty}
	}
	return Result{Kind: KindAligned, Words: words}
}

// Stage is the orchestrator's run state.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageExtracting Stage = "extracting"
	StageWhisperX   Stage = "whisperx"
	StageValidating Stage = "validating"
	StageGemini     Stage = "gemini"
	StageApplying   Stage = "applying"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Terminal reports whether no further transitions follow.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Progress is one state transition notification. Current and Total are zero
// when not applicable.
type Progress struct {
	Stage   Stage
	Message string
	Current int
	Total   int
}

// ProgressFunc receives progress notifications on the Reconcile goroutine.
type ProgressFunc func(Progress)

// Source names where a subtitle's committed timings came from.
type Source string

const (
	SourceAligned       Source = "aligned"
	SourceFallback      Source = "fallback"
	SourceRedistributed Source = "redistributed"
)

// ChangeReport is the outcome for one accepted change.
type ChangeReport struct {
	SubtitleID string
	Text       string
	Source     Source
	// Valid is true when the committed words passed the validity heuristic
	// or came from the fallback service.
	Valid bool
	Words []timing.Word
}

// Report summarises a reconciliation batch.
type Report struct {
	CorrelationID  string
	AudioExtracted bool
	Changes        []ChangeReport
}

// Count returns how many changes were committed from source.
func (r Report) Count(source Source) int {
	n := 0
	for _, c := range r.Changes {
		if c.Source == source {
			n++
		}
	}
	return n
}

// Invalid returns how many committed changes kept an alignment that failed
// validation.
func (r Report) Invalid() int {
	n := 0
	for _, c := range r.Changes {
		if !c.Valid && c.Source == SourceAligned {
			n++
		}
	}
	return n
}

// FallbackRequest identifies one window for the fallback service.
type FallbackRequest struct {
	AudioPath    string
	Text         string
	SegmentStart float64
	SegmentEnd   float64
}

// Aligner performs batch forced alignment. The result is index-aligned with
// segs.
type Aligner interface {
	Align(ctx context.Context, audioPath string, segs []Segment) ([]AlignedSegment, error)
}

// AudioExtractor writes the audio track of a video to outputPath and returns
// the path actually written.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outputPath string) (string, error)
}

// FallbackTimer produces word timings for a single window.
type FallbackTimer interface {
	GetWordTimings(ctx context.Context, req FallbackRequest) ([]timing.TranscriptionWord, error)
}

// TempFileManager hands out and removes scratch files. DeleteTempFile never
// fails loudly.
type TempFileManager interface {
	NewPath(ext string) string
	DeleteTempFile(path string) fileutil.DeleteResult
}

// SubtitleStore commits a subtitle's new text and words atomically.
type SubtitleStore interface {
	UpdateSubtitleWithWords(ctx context.Context, id, text string, words []timing.Word) error
}
