package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wordsync/internal/config"
	"wordsync/internal/subtitle"
)

func newSubtitleCommand(ctx *commandContext) *cobra.Command {
	subtitleCmd := &cobra.Command{
		Use:   "subtitle",
		Short: "Edit individual subtitles",
	}

	subtitleCmd.AddCommand(newSubtitleEditCommand(ctx))
	subtitleCmd.AddCommand(newSubtitleDeleteCommand(ctx))

	return subtitleCmd
}

func newSubtitleEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <subtitle-id> <text>",
		Short: "Replace a subtitle's text, keeping word timings when the word count is unchanged",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				return errors.New("subtitle text must not be empty")
			}
			return ctx.withStore(func(_ *config.Config, store *subtitle.Store) error {
				words, err := store.UpdateSubtitleText(cmd.Context(), args[0], text)
				if err != nil {
					return subtitleLookupError(err, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated subtitle %s\n", args[0])
				edited := subtitle.Subtitle{ID: args[0], Text: text, Words: words}
				fmt.Fprintln(cmd.OutOrStdout(), renderSubtitles([]subtitle.Subtitle{edited}, true))
				return nil
			})
		},
	}
}

func newSubtitleDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <subtitle-id>",
		Short: "Remove a subtitle and its words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *subtitle.Store) error {
				if err := store.DeleteSubtitle(cmd.Context(), args[0]); err != nil {
					return subtitleLookupError(err, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted subtitle %s\n", args[0])
				return nil
			})
		},
	}
}

func subtitleLookupError(err error, id string) error {
	if errors.Is(err, subtitle.ErrSubtitleNotFound) {
		return fmt.Errorf("subtitle %s not found", id)
	}
	return err
}
