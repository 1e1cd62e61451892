package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"wordsync/internal/alignment"
	"wordsync/internal/config"
	"wordsync/internal/preflight"
	"wordsync/internal/services/whisperx"
	"wordsync/internal/subtitle"
	"wordsync/internal/timing"
)

type reconciler interface {
	Reconcile(ctx context.Context, project *subtitle.Project, changes []subtitle.Change) (alignment.Report, error)
	Close() error
}

// newReconciler builds the production pipeline; tests replace it.
var newReconciler = func(cfg *config.Config, store *subtitle.Store, logger *slog.Logger, progress alignment.ProgressFunc, serviceProgress func(whisperx.Progress)) reconciler {
	return alignment.NewFromConfig(cfg, store, logger, progress, serviceProgress)
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var audioPath string
	var skipPreflight bool
	var jsonOutput bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "reconcile <project-id> <changes.json>",
		Short: "Re-time subtitles after accepted text corrections",
		Long: "Aligns every accepted change against the project audio, falls back to\n" +
			"the word-timing model for implausible segments and commits the new\n" +
			"word timings to the store.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			changes, err := subtitle.ReadChangesFile(args[1])
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *subtitle.Store) error {
				if !skipPreflight {
					if err := runQuickPreflight(cmd.Context(), cfg); err != nil {
						return err
					}
				}

				lock, err := subtitle.LockProject(cmd.Context(), cfg.Paths.DataDir, projectID)
				if err != nil {
					return err
				}
				defer lock.Unlock()

				project, err := store.LoadProject(cmd.Context(), projectID)
				if err != nil {
					return projectLookupError(err, projectID)
				}
				if strings.TrimSpace(audioPath) != "" {
					expanded, err := config.ExpandPath(audioPath)
					if err != nil {
						return fmt.Errorf("resolve audio path: %w", err)
					}
					project.AudioPath = expanded
				}

				printer := newProgressPrinter(cmd.ErrOrStderr(), quiet)
				runner := newReconciler(cfg, store, ctx.ensureLogger(), printer.stage, printer.service)
				defer runner.Close()

				report, err := runner.Reconcile(cmd.Context(), project, changes)
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", projectID, err)
				}
				if jsonOutput {
					return writeJSON(cmd, reportJSON(report))
				}
				renderReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Override the project's extracted audio file")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip the directory and binary checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	return cmd
}

// runQuickPreflight runs the checks that finish in milliseconds.
func runQuickPreflight(ctx context.Context, cfg *config.Config) error {
	results := preflight.RunAll(ctx, cfg, preflight.Options{SkipModule: true, SkipLLM: true})
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight failed (%s); run `wordsync doctor` for details", strings.Join(parts, "; "))
}

type progressPrinter struct {
	mu        sync.Mutex
	out       io.Writer
	quiet     bool
	colorize  bool
	lastStage alignment.Stage
}

func newProgressPrinter(out io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{out: out, quiet: quiet, colorize: shouldColorize(out)}
}

// stage prints the first event of every stage, the final event of counted
// stages and every terminal event. A terminal event starts a new run.
func (p *progressPrinter) stage(ev alignment.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	changed := ev.Stage != p.lastStage
	p.lastStage = ev.Stage
	if ev.Stage.Terminal() {
		p.lastStage = ""
	} else if !changed && (ev.Total == 0 || ev.Current != ev.Total) {
		return
	}
	kind := statusInfo
	switch ev.Stage {
	case alignment.StageComplete:
		kind = statusOK
	case alignment.StageError:
		kind = statusError
	case alignment.StageExtracting, alignment.StageGemini:
		kind = statusWarn
	}
	fmt.Fprintln(p.out, renderStatusLine(string(ev.Stage), kind, ev.Message, p.colorize))
}

func (p *progressPrinter) service(ev whisperx.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	msg := fmt.Sprintf("%3.0f%% %s", ev.Percent, strings.TrimSpace(ev.Message))
	fmt.Fprintln(p.out, renderStatusLine("whisperx/"+ev.Stage, statusInfo, msg, p.colorize))
}

func renderReport(out io.Writer, report alignment.Report) {
	rows := make([][]string, 0, len(report.Changes))
	for _, c := range report.Changes {
		rows = append(rows, []string{c.SubtitleID, string(c.Source), yesNo(c.Valid), strconv.Itoa(len(c.Words)), truncateCell(c.Text)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Subtitle", "Source", "Valid", "Words", "Text"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Updated %d subtitles: %d aligned, %d fallback, %d redistributed",
		len(report.Changes),
		report.Count(alignment.SourceAligned),
		report.Count(alignment.SourceFallback),
		report.Count(alignment.SourceRedistributed),
	)
	if n := report.Invalid(); n > 0 {
		fmt.Fprintf(out, " (%d kept an alignment that failed validation)", n)
	}
	fmt.Fprintln(out)
	if report.AudioExtracted {
		fmt.Fprintln(out, "Audio was re-extracted from the video.")
	}
	fmt.Fprintf(out, "Correlation ID: %s\n", report.CorrelationID)
}

type changeReportJSON struct {
	SubtitleID string        `json:"subtitleId"`
	Text       string        `json:"text"`
	Source     string        `json:"source"`
	Valid      bool          `json:"valid"`
	Words      []timing.Word `json:"words"`
	Start      float64       `json:"startTime"`
	End        float64       `json:"endTime"`
}

type reportJSONView struct {
	CorrelationID  string             `json:"correlationId"`
	AudioExtracted bool               `json:"audioExtracted"`
	Changes        []changeReportJSON `json:"changes"`
}

func reportJSON(report alignment.Report) reportJSONView {
	view := reportJSONView{
		CorrelationID:  report.CorrelationID,
		AudioExtracted: report.AudioExtracted,
		Changes:        make([]changeReportJSON, 0, len(report.Changes)),
	}
	for _, c := range report.Changes {
		entry := changeReportJSON{
			SubtitleID: c.SubtitleID,
			Text:       c.Text,
			Source:     string(c.Source),
			Valid:      c.Valid,
			Words:      c.Words,
		}
		if len(c.Words) > 0 {
			entry.Start = c.Words[0].Start
			entry.End = c.Words[len(c.Words)-1].End
		}
		view.Changes = append(view.Changes, entry)
	}
	return view
}
