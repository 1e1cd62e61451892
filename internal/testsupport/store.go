package testsupport

import (
	"context"
	"testing"

	"wordsync/internal/config"
	"wordsync/internal/subtitle"
	"wordsync/internal/timing"
)

// MustOpenStore opens a subtitle.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *subtitle.Store {
	t.Helper()

	store, err := subtitle.Open(cfg)
	if err != nil {
		t.Fatalf("subtitle.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SampleProject returns a three-subtitle project with one word per second.
func SampleProject(id string) *subtitle.Project {
	return &subtitle.Project{
		ID:        id,
		Name:      "Sample",
		VideoPath: "/videos/sample.mp4",
		AudioPath: "/videos/sample.wav",
		Subtitles: []subtitle.Subtitle{
			{ID: "s1", Start: 0, End: 2, Text: "Hallo Welt", Words: []timing.Word{
				{Text: "Hallo", Start: 0, End: 1, Confidence: 0.9},
				{Text: "Welt", Start: 1, End: 2, Confidence: 0.8},
			}},
			{ID: "s2", Start: 3, End: 5, Text: "wie geht", Words: []timing.Word{
				{Text: "wie", Start: 3, End: 4, Confidence: 1},
				{Text: "geht", Start: 4, End: 5, Confidence: 1},
			}},
			{ID: "s3", Start: 6, End: 8, Text: "es dir", Words: []timing.Word{
				{Text: "es", Start: 6, End: 7, Confidence: 1},
				{Text: "dir", Start: 7, End: 8, Confidence: 1},
			}},
		},
	}
}

// SaveProject persists project and fails the test on error.
func SaveProject(t testing.TB, store *subtitle.Store, project *subtitle.Project) {
	t.Helper()

	if err := store.SaveProject(context.Background(), project); err != nil {
		t.Fatalf("store.SaveProject: %v", err)
	}
}
