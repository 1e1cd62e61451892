// Package main hosts the wordsync CLI entrypoint and command graph.
//
// The Cobra command tree imports subtitle projects into the local store,
// reconciles reviewed text changes against the audio, applies manual edits
// and exports the result. It centralizes configuration resolution, store
// access and logging setup so subcommands stay declarative.
package main
