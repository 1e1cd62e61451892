package timing

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestRedistributeCoversWindow(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		start float64
		end   float64
	}{
		{"two words", "hello world", 0, 2},
		{"uneven lengths", "a bb ccc dddd eeeee", 5.5, 9.25},
		{"extra whitespace", "  spaced \t out\nwords  ", 1, 1.5},
		{"tiny window", "x y z", 3, 3.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := Redistribute(tt.text, tt.start, tt.end, nil)
			if got, want := len(words), CountTokens(tt.text); got != want {
				t.Fatalf("len(words) = %d, want %d", got, want)
			}
			if math.Abs(words[0].Start-tt.start) > epsilon {
				t.Fatalf("first start = %f, want %f", words[0].Start, tt.start)
			}
			if words[len(words)-1].End != tt.end {
				t.Fatalf("last end = %f, want %f", words[len(words)-1].End, tt.end)
			}
			for i, w := range words {
				if w.Start > w.End {
					t.Fatalf("word %d start %f after end %f", i, w.Start, w.End)
				}
				if i > 0 && w.Start < words[i-1].End {
					t.Fatalf("word %d overlaps previous: %f < %f", i, w.Start, words[i-1].End)
				}
			}
		})
	}
}

func TestRedistributeEmptyText(t *testing.T) {
	words := Redistribute("   ", 0, 1, nil)
	if words == nil || len(words) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", words)
	}
}

func TestRedistributeSingleWord(t *testing.T) {
	words := Redistribute("Hallo", 2.25, 3.75, []Word{{Text: "Halo", Confidence: 0.42}, {Confidence: 0.1}})
	if len(words) != 1 {
		t.Fatalf("expected 1 word, got %d", len(words))
	}
	w := words[0]
	if w.Start != 2.25 || w.End != 3.75 {
		t.Fatalf("span = [%f, %f], want [2.25, 3.75]", w.Start, w.End)
	}
	if w.Confidence != 0.42 {
		t.Fatalf("confidence = %f, want 0.42", w.Confidence)
	}

	fresh := Redistribute("Hallo", 0, 1, nil)
	if fresh[0].Confidence != 1 {
		t.Fatalf("default confidence = %f, want 1", fresh[0].Confidence)
	}
}

func TestRedistributeProportionalDurations(t *testing.T) {
	words := Redistribute("Der schnelle braune Fuchs", 10.0, 13.0, nil)
	if len(words) != 4 {
		t.Fatalf("expected 4 words, got %d", len(words))
	}

	// Character lengths 3, 8, 6, 5 over 22 characters and a 3s window.
	want := []float64{3.0 / 22 * 3, 8.0 / 22 * 3, 6.0 / 22 * 3, 5.0 / 22 * 3}
	current := 10.0
	for i, w := range words {
		gap := 0.0
		if i > 0 {
			gap = math.Min(want[i]*0.05, 0.05)
		}
		if math.Abs(w.Start-(current+gap)) > 1e-6 {
			t.Fatalf("word %d start = %f, want %f", i, w.Start, current+gap)
		}
		if i < len(words)-1 {
			if math.Abs(w.End-(current+want[i])) > 1e-6 {
				t.Fatalf("word %d end = %f, want %f", i, w.End, current+want[i])
			}
		}
		current = w.End
	}
	if words[3].End != 13.0 {
		t.Fatalf("last end = %f, want exactly 13.0", words[3].End)
	}
	if math.Abs(words[0].End-10.409) > 0.001 {
		t.Fatalf("first word end = %f, want ~10.409", words[0].End)
	}
}

func TestRedistributeAveragesConfidence(t *testing.T) {
	original := []Word{{Confidence: 0.5}, {Confidence: 1}, {Confidence: 0.6}}
	words := Redistribute("one two", 0, 1, original)
	for i, w := range words {
		if math.Abs(w.Confidence-0.7) > epsilon {
			t.Fatalf("word %d confidence = %f, want 0.7", i, w.Confidence)
		}
	}
}

func TestRedistributeNormalizesCombiningMarks(t *testing.T) {
	composed := Redistribute("Über alles", 0, 2, nil)
	decomposed := Redistribute("U\u0308ber alles", 0, 2, nil)
	if math.Abs(composed[0].End-decomposed[0].End) > epsilon {
		t.Fatalf("composed end %f != decomposed end %f", composed[0].End, decomposed[0].End)
	}
}

func TestUpdateTextWithTimingPreservation(t *testing.T) {
	original := []Word{
		{Text: "Teh", Start: 1.0, End: 1.3, Confidence: 0.8},
		{Text: "quick", Start: 1.4, End: 1.9, Confidence: 0.9},
	}

	t.Run("same count keeps timings", func(t *testing.T) {
		words := UpdateTextWithTimingPreservation("The quick", original, 1.0, 2.0)
		if len(words) != 2 {
			t.Fatalf("expected 2 words, got %d", len(words))
		}
		if words[0].Text != "The" || words[0].Start != 1.0 || words[0].End != 1.3 || words[0].Confidence != 0.8 {
			t.Fatalf("unexpected first word %+v", words[0])
		}
		if words[1].Start != 1.4 || words[1].End != 1.9 {
			t.Fatalf("unexpected second word %+v", words[1])
		}
		if original[0].Text != "Teh" {
			t.Fatal("original words were mutated")
		}
	})

	t.Run("different count redistributes", func(t *testing.T) {
		words := UpdateTextWithTimingPreservation("The very quick", original, 1.0, 2.0)
		if len(words) != 3 {
			t.Fatalf("expected 3 words, got %d", len(words))
		}
		if words[0].Start != 1.0 || words[2].End != 2.0 {
			t.Fatalf("redistributed words do not cover window: %+v", words)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if words := UpdateTextWithTimingPreservation("", original, 1.0, 2.0); len(words) != 0 {
			t.Fatalf("expected no words, got %d", len(words))
		}
	})
}
