package timing

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Word is a single timed token inside a subtitle. Times are in seconds.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"startTime"`
	End        float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// TranscriptionWord is the word unit produced by alignment sources.
type TranscriptionWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

// Bounds describes a subtitle window used by the rescaling policy.
type Bounds struct {
	Start float64
	End   float64
}

// Tokens splits text on whitespace and drops empty tokens.
func Tokens(text string) []string {
	return strings.Fields(text)
}

// CountTokens returns the number of whitespace-separated tokens in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// charLength measures a token in code points after NFC normalization so that
// composed and decomposed characters weigh the same.
func charLength(token string) int {
	return utf8.RuneCountInString(norm.NFC.String(token))
}

// JoinText rebuilds subtitle text from a word list.
func JoinText(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if text := strings.TrimSpace(w.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// FromTranscription converts alignment words into subtitle words, using the
// source score as confidence.
func FromTranscription(words []TranscriptionWord) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		out = append(out, Word{
			Text:       strings.TrimSpace(w.Word),
			Start:      w.Start,
			End:        w.End,
			Confidence: clampConfidence(w.Score),
		})
	}
	return out
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
