package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool = errors.New("external tool error")
	ErrValidation   = errors.New("validation error")
	ErrTimeout      = errors.New("timeout")
	ErrTransient    = errors.New("transient failure")

	// ErrAlignment marks a batch-level alignment failure: the primary call and
	// the retry with freshly extracted audio both failed.
	ErrAlignment = errors.New("alignment service error")
	// ErrFallback marks a segment-level fallback word-timing failure.
	ErrFallback = errors.New("fallback word timing error")
)

var markers = []error{ErrAlignment, ErrFallback, ErrValidation, ErrExternalTool, ErrTimeout, ErrTransient}

// Wrap tags err with marker, one of the sentinels above (ErrTransient when
// nil), and prefixes it with "stage: operation: message". err may be nil.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := buildDetail(stage, operation, message)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// UserMessage renders err for display. The marker prefix is dropped so the
// underlying service message is what the user sees.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range markers {
		if trimmed, ok := strings.CutPrefix(msg, marker.Error()+": "); ok && errors.Is(err, marker) {
			return trimmed
		}
	}
	return msg
}

func buildDetail(fields ...string) string {
	kept := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return "service failure"
	}
	return strings.Join(kept, ": ")
}
