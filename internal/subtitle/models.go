package subtitle

import (
	"sort"
	"strings"

	"wordsync/internal/timing"
)

// Subtitle is one on-screen block with its word timings. Times are seconds.
type Subtitle struct {
	ID    string        `json:"id"`
	Start float64       `json:"startTime"`
	End   float64       `json:"endTime"`
	Text  string        `json:"text"`
	Words []timing.Word `json:"words"`
}

// Bounds returns the subtitle's time window.
func (s Subtitle) Bounds() timing.Bounds {
	return timing.Bounds{Start: s.Start, End: s.End}
}

// ChangeStatus is the review state of a proposed text correction.
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeAccepted ChangeStatus = "accepted"
	ChangeRejected ChangeStatus = "rejected"
)

// Change is a proposed correction to one subtitle's text.
type Change struct {
	SubtitleID    string       `json:"subtitleId"`
	OriginalText  string       `json:"originalText"`
	CorrectedText string       `json:"correctedText"`
	Status        ChangeStatus `json:"status"`
	ChangeType    string       `json:"changeType,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// AcceptedChanges keeps accepted changes in their original order.
func AcceptedChanges(changes []Change) []Change {
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if ChangeStatus(strings.ToLower(string(c.Status))) == ChangeAccepted {
			out = append(out, c)
		}
	}
	return out
}

// Project is a transcribed video with its subtitle track.
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	VideoPath string     `json:"videoPath"`
	AudioPath string     `json:"audioPath,omitempty"`
	Subtitles []Subtitle `json:"subtitles"`
}

// Lookup returns the subtitle with the given id.
func (p *Project) Lookup(id string) (*Subtitle, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Subtitles {
		if p.Subtitles[i].ID == id {
			return &p.Subtitles[i], true
		}
	}
	return nil, false
}

// Next returns the subtitle that follows id in start-time order, or nil when
// id is the last subtitle (or unknown).
func (p *Project) Next(id string) *Subtitle {
	if p == nil {
		return nil
	}
	ordered := p.Ordered()
	for i := range ordered {
		if ordered[i].ID != id {
			continue
		}
		if i+1 < len(ordered) {
			next := ordered[i+1]
			return &next
		}
		return nil
	}
	return nil
}

// Ordered returns a copy of the subtitles sorted by start time.
func (p *Project) Ordered() []Subtitle {
	ordered := append([]Subtitle(nil), p.Subtitles...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})
	return ordered
}

// Summary is a lightweight project listing row.
type Summary struct {
	ID            string
	Name          string
	VideoPath     string
	SubtitleCount int
	UpdatedAt     string
}
