package timing

import "math"

const (
	// maxInterWordGap caps the pause inserted before each redistributed word.
	maxInterWordGap = 0.05
	// interWordGapRatio is the share of a word's duration spent as leading gap.
	interWordGapRatio = 0.05
)

// Redistribute estimates word timings for text across [start, end] by
// weighting each token with its character length. originalWords only feed
// the confidence values; their timings are ignored.
func Redistribute(text string, start, end float64, originalWords []Word) []Word {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return []Word{}
	}
	if end < start {
		end = start
	}

	if len(tokens) == 1 {
		confidence := 1.0
		if len(originalWords) > 0 {
			confidence = originalWords[0].Confidence
		}
		return []Word{{Text: tokens[0], Start: start, End: end, Confidence: confidence}}
	}

	lengths := make([]int, len(tokens))
	totalChars := 0
	for i, token := range tokens {
		lengths[i] = charLength(token)
		totalChars += lengths[i]
	}
	confidence := averageConfidence(originalWords)
	window := end - start

	words := make([]Word, 0, len(tokens))
	current := start
	for i, token := range tokens {
		duration := float64(lengths[i]) / float64(totalChars) * window
		gap := 0.0
		if i > 0 {
			gap = math.Min(duration*interWordGapRatio, maxInterWordGap)
		}
		wordStart := math.Min(current+gap, end)
		wordEnd := math.Min(current+duration, end)
		if wordEnd < wordStart {
			wordEnd = wordStart
		}
		words = append(words, Word{
			Text:       token,
			Start:      wordStart,
			End:        wordEnd,
			Confidence: confidence,
		})
		current = wordEnd
	}
	words[len(words)-1].End = end
	return words
}

// UpdateTextWithTimingPreservation applies a hand edit to a subtitle. When the
// token count is unchanged every original span and confidence is kept and
// only the text is replaced; otherwise timings are redistributed.
func UpdateTextWithTimingPreservation(newText string, originalWords []Word, start, end float64) []Word {
	tokens := Tokens(newText)
	if len(tokens) > 0 && len(tokens) == len(originalWords) {
		words := make([]Word, len(originalWords))
		for i, w := range originalWords {
			w.Text = tokens[i]
			words[i] = w
		}
		return words
	}
	return Redistribute(newText, start, end, originalWords)
}

func averageConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 1
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
