package logging

import "strings"

const defaultProgressStep = 5

// ProgressSampler decides which service progress events are worth a log line:
// the first event of each stage and the first event in each new percent step.
// A nil sampler logs everything.
type ProgressSampler struct {
	step   float64
	stage  string
	bucket int
}

// NewProgressSampler returns a sampler with the given percent step; values
// <= 0 use 5.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = defaultProgressStep
	}
	s := &ProgressSampler{step: step}
	s.Reset()
	return s
}

// ShouldLog reports whether the event (stage, percent) should be logged. A
// negative percent means the service did not report one; a blank stage keeps
// the current one.
func (s *ProgressSampler) ShouldLog(stage string, percent float64) bool {
	if s == nil {
		return true
	}
	newStage := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage, s.bucket = stage, -1
		newStage = true
	}
	if percent < 0 {
		return newStage
	}
	b := int(min(percent, 100) / s.step)
	if b <= s.bucket {
		return newStage
	}
	s.bucket = b
	return true
}

// Reset forgets the last stage and step, typically between requests.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.stage, s.bucket = "", -1
	}
}
