package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wordsync/internal/deps"
	"wordsync/internal/language"
	"wordsync/internal/preflight"
)

// moduleProbe is replaced in tests; nil runs the configured python.
var moduleProbe deps.ModuleProbe

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, external tools and the fallback model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{
				ModuleProbe: moduleProbe,
				SkipLLM:     offline,
			})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lang := cfg.Alignment.Language
			fmt.Fprintln(out, renderStatusLine("Alignment language", statusInfo,
				fmt.Sprintf("%s (%s), model %s on %s", language.DisplayName(lang), lang, cfg.Alignment.Model, cfg.Alignment.Device), colorize))
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if !cfg.Fallback.Enabled {
				fmt.Fprintln(out, renderStatusLine("Fallback LLM", statusWarn, "disabled", colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the fallback model round trip")
	return cmd
}
