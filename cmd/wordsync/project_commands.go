package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wordsync/internal/config"
	"wordsync/internal/subtitle"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage subtitle projects in the local store",
	}

	projectCmd.AddCommand(newProjectImportCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectExportCommand(ctx))
	projectCmd.AddCommand(newProjectDeleteCommand(ctx))

	return projectCmd
}

func newProjectImportCommand(ctx *commandContext) *cobra.Command {
	var audioPath string

	cmd := &cobra.Command{
		Use:   "import <project.json>",
		Short: "Import or replace a project from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := subtitle.ReadProjectFile(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(audioPath) != "" {
				expanded, err := config.ExpandPath(audioPath)
				if err != nil {
					return fmt.Errorf("resolve audio path: %w", err)
				}
				project.AudioPath = expanded
			}
			return ctx.withStore(func(_ *config.Config, store *subtitle.Store) error {
				if err := store.SaveProject(cmd.Context(), project); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported project %s (%d subtitles)\n", project.ID, len(project.Subtitles))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Extracted audio file to align against")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *subtitle.Store) error {
				summaries, err := store.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No projects stored")
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{s.ID, s.Name, strconv.Itoa(s.SubtitleCount), s.VideoPath, s.UpdatedAt})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Subtitles", "Video", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	var showWords bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *subtitle.Store) error {
				project, err := store.LoadProject(cmd.Context(), args[0])
				if err != nil {
					return projectLookupError(err, args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, project)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project %s: %s\n", project.ID, project.Name)
				fmt.Fprintf(out, "Video: %s\n", project.VideoPath)
				if project.AudioPath != "" {
					fmt.Fprintf(out, "Audio: %s\n", project.AudioPath)
				}
				fmt.Fprintln(out, renderSubtitles(project.Subtitles, showWords))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showWords, "words", false, "List individual word timings")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderSubtitles(subs []subtitle.Subtitle, showWords bool) string {
	if !showWords {
		rows := make([][]string, 0, len(subs))
		for _, s := range subs {
			rows = append(rows, []string{s.ID, formatSeconds(s.Start), formatSeconds(s.End), strconv.Itoa(len(s.Words)), truncateCell(s.Text)})
		}
		return renderTable(
			[]string{"ID", "Start", "End", "Words", "Text"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		)
	}
	var rows [][]string
	for _, s := range subs {
		for i, w := range s.Words {
			rows = append(rows, []string{s.ID, strconv.Itoa(i + 1), formatSeconds(w.Start), formatSeconds(w.End), fmt.Sprintf("%.2f", w.Confidence), w.Text})
		}
	}
	return renderTable(
		[]string{"Subtitle", "#", "Start", "End", "Conf", "Word"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func newProjectExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <project-id> <output.json>",
		Short: "Write a project with its current word timings to a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.ExpandPath(args[1])
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			return ctx.withStore(func(_ *config.Config, store *subtitle.Store) error {
				project, err := store.LoadProject(cmd.Context(), args[0])
				if err != nil {
					return projectLookupError(err, args[0])
				}
				if err := subtitle.WriteProjectFile(target, project); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported project %s to %s\n", project.ID, target)
				return nil
			})
		},
	}
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Remove a project and all its subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *subtitle.Store) error {
				lock, err := subtitle.LockProject(cmd.Context(), cfg.Paths.DataDir, args[0])
				if err != nil {
					return err
				}
				defer lock.Unlock()
				if err := store.ClearProject(cmd.Context(), args[0]); err != nil {
					return projectLookupError(err, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
				return nil
			})
		},
	}
}

func projectLookupError(err error, id string) error {
	if errors.Is(err, subtitle.ErrProjectNotFound) {
		return fmt.Errorf("project %s not found; import it with `wordsync project import`", id)
	}
	return err
}
