package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wordsync/internal/alignment"
	"wordsync/internal/config"
	"wordsync/internal/services/whisperx"
	"wordsync/internal/subtitle"
	"wordsync/internal/testsupport"
	"wordsync/internal/timing"
)

func TestProjectImportListShow(t *testing.T) {
	env := setupCLITestEnv(t)
	importSample(t, env, "demo")

	out, _, err := runCLI(t, []string{"project", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	requireContains(t, out, "demo")
	requireContains(t, out, "Sample")

	out, _, err = runCLI(t, []string{"project", "show", "demo"}, env.configPath)
	if err != nil {
		t.Fatalf("project show: %v", err)
	}
	requireContains(t, out, "Hallo Welt")
	requireContains(t, out, "6.000")

	out, _, err = runCLI(t, []string{"project", "show", "demo", "--words"}, env.configPath)
	if err != nil {
		t.Fatalf("project show --words: %v", err)
	}
	requireContains(t, out, "Welt")
	requireContains(t, out, "0.80")

	out, _, err = runCLI(t, []string{"project", "show", "demo", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("project show --json: %v", err)
	}
	var project subtitle.Project
	if err := json.Unmarshal([]byte(out), &project); err != nil {
		t.Fatalf("decode json output: %v", err)
	}
	if project.ID != "demo" || len(project.Subtitles) != 3 {
		t.Fatalf("unexpected project: %#v", project)
	}
}

func TestProjectListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"project", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	requireContains(t, out, "No projects stored")
}

func TestProjectShowUnknown(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"project", "show", "missing"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown project")
	}
	requireContains(t, err.Error(), "not found")
}

func TestProjectImportAudioOverrideAndExport(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeProjectJSON(t, env.baseDir, testsupport.SampleProject("demo"))
	audio := filepath.Join(env.baseDir, "demo.wav")
	if _, _, err := runCLI(t, []string{"project", "import", path, "--audio", audio}, env.configPath); err != nil {
		t.Fatalf("project import: %v", err)
	}

	exported := filepath.Join(env.baseDir, "out", "demo.json")
	out, _, err := runCLI(t, []string{"project", "export", "demo", exported}, env.configPath)
	if err != nil {
		t.Fatalf("project export: %v", err)
	}
	requireContains(t, out, exported)

	project, err := subtitle.ReadProjectFile(exported)
	if err != nil {
		t.Fatalf("read exported project: %v", err)
	}
	if project.AudioPath != audio {
		t.Fatalf("expected audio override %q, got %q", audio, project.AudioPath)
	}
	if len(project.Subtitles[0].Words) != 2 || project.Subtitles[0].Words[1].Text != "Welt" {
		t.Fatalf("unexpected exported words: %#v", project.Subtitles[0].Words)
	}
}

func TestProjectDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	importSample(t, env, "demo")

	if _, _, err := runCLI(t, []string{"project", "delete", "demo"}, env.configPath); err != nil {
		t.Fatalf("project delete: %v", err)
	}
	if _, _, err := runCLI(t, []string{"project", "delete", "demo"}, env.configPath); err == nil {
		t.Fatal("expected second delete to fail")
	}
}

func TestSubtitleEditKeepsTimingsForSameWordCount(t *testing.T) {
	env := setupCLITestEnv(t)
	importSample(t, env, "demo")

	out, _, err := runCLI(t, []string{"subtitle", "edit", "s1", "Hallo", "Erde"}, env.configPath)
	if err != nil {
		t.Fatalf("subtitle edit: %v", err)
	}
	requireContains(t, out, "Updated subtitle s1")
	requireContains(t, out, "Erde")

	store := testsupport.MustOpenStore(t, env.cfg)
	sub, err := store.GetSubtitle(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSubtitle: %v", err)
	}
	if sub.Text != "Hallo Erde" || sub.Words[1].Text != "Erde" || sub.Words[1].Start != 1 || sub.Words[1].Confidence != 0.8 {
		t.Fatalf("expected preserved timings, got %#v", sub)
	}
}

func TestSubtitleEditUnknown(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"subtitle", "edit", "nope", "text"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown subtitle")
	}
	requireContains(t, err.Error(), "subtitle nope not found")
}

type fakeReconciler struct {
	project  *subtitle.Project
	changes  []subtitle.Change
	progress alignment.ProgressFunc
	report   alignment.Report
	err      error
	closed   bool
}

func (f *fakeReconciler) Reconcile(_ context.Context, project *subtitle.Project, changes []subtitle.Change) (alignment.Report, error) {
	f.project = project
	f.changes = changes
	f.progress(alignment.Progress{Stage: alignment.StageWhisperX, Message: "Aligning 1 segments", Total: 1})
	f.progress(alignment.Progress{Stage: alignment.StageComplete, Message: "Updated 1 subtitles", Current: 1, Total: 1})
	return f.report, f.err
}

func (f *fakeReconciler) Close() error {
	f.closed = true
	return nil
}

func stubReconciler(t *testing.T, fake *fakeReconciler) {
	t.Helper()
	previous := newReconciler
	newReconciler = func(_ *config.Config, _ *subtitle.Store, _ *slog.Logger, progress alignment.ProgressFunc, _ func(whisperx.Progress)) reconciler {
		fake.progress = progress
		return fake
	}
	t.Cleanup(func() { newReconciler = previous })
}

func TestReconcileCommandRendersReport(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	importSample(t, env, "demo")

	fake := &fakeReconciler{report: alignment.Report{
		CorrelationID: "corr-1",
		Changes: []alignment.ChangeReport{{
			SubtitleID: "s1",
			Text:       "Hallo schöne Welt",
			Source:     alignment.SourceRedistributed,
			Words:      []timing.Word{{Text: "Hallo"}, {Text: "schöne"}, {Text: "Welt"}},
		}},
	}}
	stubReconciler(t, fake)

	changes := writeChangesJSON(t, env.baseDir, []subtitle.Change{{SubtitleID: "s1", CorrectedText: "Hallo schöne Welt", Status: subtitle.ChangeAccepted}})
	audio := filepath.Join(env.baseDir, "override.wav")
	out, errOut, err := runCLI(t, []string{"reconcile", "demo", changes, "--audio", audio}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v (stderr %s)", err, errOut)
	}

	if fake.project == nil || fake.project.ID != "demo" || fake.project.AudioPath != audio {
		t.Fatalf("unexpected project handed to reconciler: %#v", fake.project)
	}
	if len(fake.changes) != 1 || fake.changes[0].Status != subtitle.ChangeAccepted {
		t.Fatalf("unexpected changes handed to reconciler: %#v", fake.changes)
	}
	if !fake.closed {
		t.Fatal("expected reconciler to be closed")
	}
	requireContains(t, out, "redistributed")
	requireContains(t, out, "Updated 1 subtitles: 0 aligned, 0 fallback, 1 redistributed")
	requireContains(t, out, "corr-1")
	requireContains(t, errOut, "[OK] Updated 1 subtitles")

	lock, err := subtitle.LockProject(context.Background(), env.cfg.Paths.DataDir, "demo")
	if err != nil {
		t.Fatalf("expected project lock to be released: %v", err)
	}
	lock.Unlock()
}

func TestReconcileCommandJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	importSample(t, env, "demo")
	fake := &fakeReconciler{report: alignment.Report{
		CorrelationID: "corr-2",
		Changes: []alignment.ChangeReport{{
			SubtitleID: "s2",
			Text:       "wie geht es",
			Source:     alignment.SourceAligned,
			Valid:      true,
			Words:      []timing.Word{{Text: "wie", Start: 3, End: 3.5}, {Text: "geht", Start: 3.6, End: 4}, {Text: "es", Start: 4.1, End: 4.6}},
		}},
	}}
	stubReconciler(t, fake)

	changes := writeChangesJSON(t, env.baseDir, []subtitle.Change{{SubtitleID: "s2", CorrectedText: "wie geht es", Status: subtitle.ChangeAccepted}})
	out, _, err := runCLI(t, []string{"reconcile", "demo", changes, "--json", "--quiet", "--skip-preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	var view reportJSONView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if view.CorrelationID != "corr-2" || len(view.Changes) != 1 {
		t.Fatalf("unexpected report: %#v", view)
	}
	if view.Changes[0].Start != 3 || view.Changes[0].End != 4.6 || !view.Changes[0].Valid {
		t.Fatalf("unexpected change entry: %#v", view.Changes[0])
	}
}

func TestReconcileCommandFailsPreflight(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Extraction.FFmpegBinary = "clearly-not-present-ffmpeg"
	writeTestConfig(t, env.configPath, env.cfg)
	importSample(t, env, "demo")
	fake := &fakeReconciler{}
	stubReconciler(t, fake)

	changes := writeChangesJSON(t, env.baseDir, []subtitle.Change{{SubtitleID: "s1", CorrectedText: "x"}})
	_, _, err := runCLI(t, []string{"reconcile", "demo", changes}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	requireContains(t, err.Error(), "preflight failed")
	requireContains(t, err.Error(), "FFmpeg")
	if fake.project != nil {
		t.Fatal("reconciler must not run after a failed preflight")
	}
}

func TestReconcileCommandUnknownProject(t *testing.T) {
	env := setupCLITestEnv(t)
	stubReconciler(t, &fakeReconciler{})
	changes := writeChangesJSON(t, env.baseDir, []subtitle.Change{{SubtitleID: "s1", CorrectedText: "x"}})
	_, _, err := runCLI(t, []string{"reconcile", "ghost", changes, "--skip-preflight"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown project error")
	}
	requireContains(t, err.Error(), "project ghost not found")
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[fallback]")
	requireContains(t, out, "********")
	if strings.Contains(out, `api_key = "test"`) {
		t.Fatalf("expected api key to be redacted:\n%s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	broken := filepath.Join(env.baseDir, "broken.toml")
	if err := os.WriteFile(broken, []byte("[alignment]\ndevice = \"tpu\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, broken); err == nil {
		t.Fatal("expected invalid device to fail validation")
	}
}

func TestDoctorCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	previous := moduleProbe
	moduleProbe = func(context.Context, string, ...string) error { return nil }
	t.Cleanup(func() { moduleProbe = previous })

	out, _, err := runCLI(t, []string{"doctor", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "German (de)")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "Alignment service")
	requireContains(t, out, "All checks passed")
}

func TestProgressPrinter(t *testing.T) {
	var buf strings.Builder
	p := newProgressPrinter(&buf, false)
	p.stage(alignment.Progress{Stage: alignment.StageValidating, Message: "Validating segment 1 of 3", Current: 1, Total: 3})
	p.stage(alignment.Progress{Stage: alignment.StageValidating, Message: "Validating segment 2 of 3", Current: 2, Total: 3})
	p.stage(alignment.Progress{Stage: alignment.StageValidating, Message: "Validating segment 3 of 3", Current: 3, Total: 3})
	p.stage(alignment.Progress{Stage: alignment.StageError, Message: "alignment failed"})
	p.service(whisperx.Progress{Stage: "aligning", Percent: 40, Message: "segment 4/10"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	requireContains(t, lines[0], "segment 1 of 3")
	requireContains(t, lines[1], "segment 3 of 3")
	requireContains(t, lines[2], "[ERROR] alignment failed")
	requireContains(t, lines[3], " 40% segment 4/10")

	var runs strings.Builder
	r := newProgressPrinter(&runs, false)
	// Runs rejected before any I/O emit only their error event.
	r.stage(alignment.Progress{Stage: alignment.StageError, Message: "unknown subtitle s9"})
	r.stage(alignment.Progress{Stage: alignment.StageError, Message: "unknown subtitle s8"})
	requireContains(t, runs.String(), "unknown subtitle s9")
	requireContains(t, runs.String(), "unknown subtitle s8")

	var quiet strings.Builder
	q := newProgressPrinter(&quiet, true)
	q.stage(alignment.Progress{Stage: alignment.StageComplete})
	if quiet.Len() != 0 {
		t.Fatalf("expected no output in quiet mode, got %q", quiet.String())
	}
}
