package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wordsync/internal/config"
	"wordsync/internal/subtitle"
	"wordsync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeProjectJSON(t *testing.T, dir string, project *subtitle.Project) string {
	t.Helper()
	path := filepath.Join(dir, project.ID+".json")
	if err := subtitle.WriteProjectFile(path, project); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return path
}

func writeChangesJSON(t *testing.T, dir string, changes []subtitle.Change) string {
	t.Helper()
	data, err := json.Marshal(changes)
	if err != nil {
		t.Fatalf("encode changes: %v", err)
	}
	path := filepath.Join(dir, "changes.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write changes: %v", err)
	}
	return path
}

func importSample(t *testing.T, env *cliTestEnv, id string) {
	t.Helper()
	path := writeProjectJSON(t, env.baseDir, testsupport.SampleProject(id))
	if _, _, err := runCLI(t, []string{"project", "import", path}, env.configPath); err != nil {
		t.Fatalf("project import: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
