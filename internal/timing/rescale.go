package timing

import "math"

const (
	// GapBetweenSubtitles keeps a block clear of the following subtitle.
	GapBetweenSubtitles = 0.1
	// MaxBlockDuration is the longest a subtitle may stay on screen.
	MaxBlockDuration = 4.0
)

// MaxEndTime returns the latest end a block starting at current.Start may
// reach, given the next subtitle (nil when current is the last one).
func MaxEndTime(current Bounds, next *Bounds) float64 {
	limit := current.Start + MaxBlockDuration
	if next != nil {
		limit = math.Min(next.Start-GapBetweenSubtitles, limit)
	}
	return limit
}

// Rescale compresses words so the last word ends no later than
// MaxEndTime(current, next). Words already inside the limit are returned
// as-is (same slice, untouched). Otherwise each word is remapped linearly
// onto [current.Start, maxEnd], preserving relative positions.
func Rescale(words []Word, current Bounds, next *Bounds) []Word {
	if len(words) == 0 {
		return words
	}
	maxEnd := MaxEndTime(current, next)
	last := words[len(words)-1]
	if last.End <= maxEnd {
		return words
	}

	first := words[0].Start
	original := last.End - first
	allowed := math.Max(maxEnd-current.Start, 0)
	scale := 0.0
	if original > 0 {
		scale = allowed / original
	}

	out := make([]Word, len(words))
	for i, w := range words {
		w.Start = current.Start + (w.Start-first)*scale
		w.End = current.Start + (w.End-first)*scale
		out[i] = w
	}
	return out
}
