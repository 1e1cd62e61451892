package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"wordsync/internal/config"
	"wordsync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		payload := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckLLM(t *testing.T) {
	ok := healthServer(t, http.StatusOK)
	if r := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "k", BaseURL: ok.URL, Model: "m"}); !r.Passed {
		t.Fatalf("expected pass, got: %s", r.Detail)
	}

	unauthorized := healthServer(t, http.StatusUnauthorized)
	if r := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "k", BaseURL: unauthorized.URL, Model: "m"}); r.Passed {
		t.Fatal("expected failure for rejected key")
	}

	if r := CheckLLM(context.Background(), "LLM", config.LLMConfig{}); r.Passed || r.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got %#v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, Options{})
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedEnvironment(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Fallback.Enabled = false
	probe := func(context.Context, string, ...string) error { return nil }

	results := RunAll(context.Background(), cfg, Options{ModuleProbe: probe})
	// data dir, temp dir, ffmpeg, python, alignment module
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %#v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}

func TestRunAll_ReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Extraction.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Fallback.Enabled = true
	cfg.Fallback.BaseURL = healthServer(t, http.StatusOK).URL
	probe := func(context.Context, string, ...string) error { return errors.New("no module") }

	results := RunAll(context.Background(), cfg, Options{ModuleProbe: probe})
	names := map[string]bool{}
	for _, r := range Failed(results) {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Temp directory", "FFmpeg", "Alignment service"} {
		if !names[want] {
			t.Errorf("expected %q to fail, failures: %v", want, names)
		}
	}
	if names["Fallback LLM"] {
		t.Error("fallback LLM check should pass against the test server")
	}
}

func TestRunAll_ChecksFFprobeForAutoTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "python3", "ffprobe"))
	cfg.Extraction.AudioTrack = -1
	results := RunAll(context.Background(), cfg, Options{SkipModule: true, SkipLLM: true})
	for _, r := range results {
		if r.Name == "FFprobe" {
			if !r.Passed {
				t.Fatalf("expected stubbed ffprobe to pass: %s", r.Detail)
			}
			return
		}
	}
	t.Fatalf("expected an FFprobe check, got %#v", results)
}

func TestRunAll_SkipsSlowChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Fallback.Enabled = true
	results := RunAll(context.Background(), cfg, Options{SkipModule: true, SkipLLM: true})
	for _, r := range results {
		if r.Name == "Alignment service" || r.Name == "Fallback LLM" {
			t.Fatalf("expected %q to be skipped", r.Name)
		}
	}
}
