// Package preflight provides readiness checks for the external tools, model
// endpoints and filesystem paths that reconciliation depends on.
//
// The CLI "wordsync doctor" command runs RunAll and renders the results; the
// reconcile command runs the cheap subset (directories and binaries) before
// starting the alignment service so a missing ffmpeg fails fast instead of
// after the model has loaded.
//
// Each check is gated by its config toggle: disabled features are skipped.
package preflight
