package preflight

import (
	"context"

	"wordsync/internal/config"
	"wordsync/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options tunes RunAll.
type Options struct {
	// ModuleProbe replaces the python import probe; nil runs python.
	ModuleProbe deps.ModuleProbe
	// SkipModule skips the python import, which can take seconds.
	SkipModule bool
	// SkipLLM skips the network round trip to the fallback model.
	SkipLLM bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
	}

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: depDetail(status)})
	}

	if !opts.SkipModule {
		results = append(results, CheckAlignmentModule(ctx, cfg, opts.ModuleProbe))
	}

	if cfg.Fallback.Enabled && !opts.SkipLLM {
		results = append(results, CheckLLM(ctx, "Fallback LLM", cfg.FallbackLLM()))
	}

	return results
}

func depDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	return status.Detail
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
