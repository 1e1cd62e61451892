package audio

import (
	"errors"
	"strconv"
	"strings"

	"wordsync/internal/media/ffprobe"
)

// ErrNoAudio is returned when the container has no audio streams.
var ErrNoAudio = errors.New("no audio streams")

// Selection describes the audio stream chosen for alignment.
type Selection struct {
	Stream ffprobe.Stream
	// Track is the audio-relative position, the N of "0:a:N".
	Track int
	// LanguageMatched is false when no stream carried the wanted language
	// and the selection fell back to the best untagged candidate.
	LanguageMatched bool
}

// Label returns a human-readable summary of the selected stream.
func (s Selection) Label() string {
	return formatStreamSummary(s.Stream)
}

// Select picks the audio stream whose dialogue best matches lang. Streams
// tagged with lang win over everything else; within a language, main
// programme audio beats commentary and audio description, the default flag
// breaks ties, and earlier streams win remaining ties.
func Select(streams []ffprobe.Stream, lang string) (Selection, error) {
	candidates := buildCandidates(streams, lang)
	if len(candidates) == 0 {
		return Selection{}, ErrNoAudio
	}

	best := candidates[0]
	bestScore := score(best)
	for _, cand := range candidates[1:] {
		if s := score(cand); s > bestScore {
			best = cand
			bestScore = s
		}
	}
	return Selection{Stream: best.stream, Track: best.order, LanguageMatched: best.languageMatch}, nil
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	languageMatch  bool
	secondary      bool
	defaultFlagged bool
}

func buildCandidates(streams []ffprobe.Stream, lang string) []candidate {
	var result []candidate
	order := 0
	for _, stream := range streams {
		if !stream.IsAudio() {
			continue
		}
		streamLang := stream.Language()
		result = append(result, candidate{
			stream:         stream,
			order:          order,
			languageMatch:  lang != "" && streamLang == lang,
			secondary:      isSecondary(stream),
			defaultFlagged: stream.IsDefault(),
		})
		order++
	}
	return result
}

func score(cand candidate) float64 {
	s := 0.0
	if cand.languageMatch {
		s += 1000
	}
	if !cand.secondary {
		s += 100
	}
	if cand.defaultFlagged {
		s += 5
	}
	s -= float64(cand.order) * 0.1
	return s
}

// isSecondary reports commentary and described-video tracks, which rarely
// carry the dialogue the subtitles transcribe.
func isSecondary(stream ffprobe.Stream) bool {
	if stream.Disposition["comment"] == 1 || stream.Disposition["visual_impaired"] == 1 {
		return true
	}
	title := strings.ToLower(stream.Title())
	for _, keyword := range []string{"commentary", "audio description", "descriptive", "kommentar"} {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := stream.Language(); lang != "" {
		parts = append(parts, lang)
	}
	if stream.CodecName != "" {
		parts = append(parts, stream.CodecName)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := stream.Title(); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
