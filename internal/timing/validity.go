package timing

import "math"

const (
	// minCountTolerance is the smallest accepted word-count drift.
	minCountTolerance = 2
	// countToleranceRatio scales the accepted drift with the expected count.
	countToleranceRatio = 0.3
	// BoundsTolerance is how far (seconds) a word may spill outside its segment.
	BoundsTolerance = 0.5
)

// CountTolerance returns the accepted word-count drift for expected tokens.
func CountTolerance(expected int) int {
	return max(minCountTolerance, int(math.Ceil(countToleranceRatio*float64(expected))))
}

// IsValid reports whether aligned words can be trusted for expectedText in
// [segmentStart, segmentEnd]. Rules short-circuit in order: words present,
// word count within tolerance, every word inside the padded window.
func IsValid(words []TranscriptionWord, expectedText string, segmentStart, segmentEnd float64) bool {
	if len(words) == 0 {
		return false
	}

	expected := CountTokens(expectedText)
	drift := len(words) - expected
	if drift < 0 {
		drift = -drift
	}
	if drift > CountTolerance(expected) {
		return false
	}

	lower := segmentStart - BoundsTolerance
	upper := segmentEnd + BoundsTolerance
	for _, w := range words {
		if w.Start < lower || w.End > upper {
			return false
		}
	}
	return true
}
