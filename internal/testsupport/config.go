package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wordsync/internal/config"
)

// ConfigOption adjusts a config produced by NewConfig.
type ConfigOption func(t testing.TB, root string, cfg *config.Config)

// NewConfig returns the default config rooted in a fresh temp directory. The
// fallback model gets a placeholder key and a rate limit high enough that
// tests never wait on it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.TempDir = filepath.Join(root, "tmp")
	cfg.Fallback.APIKey = "test"
	cfg.Fallback.RequestsPerMinute = 6000

	for _, opt := range opts {
		opt(t, root, &cfg)
	}
	return &cfg
}

// WithFallbackKey overrides the fallback model API key.
func WithFallbackKey(key string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Fallback.APIKey = key
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg and python3
// when empty) at the front of PATH for the duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, root string, _ *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{"ffmpeg", "python3"}
		}
		bin := filepath.Join(root, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("create stub dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", strings.Join([]string{bin, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}
