package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"wordsync/internal/config"
	"wordsync/internal/deps"
	"wordsync/internal/services/llm"
)

const llmCheckTimeout = 30 * time.Second

// CheckLLM makes one health-check round trip to the model endpoint, without
// retries.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	ctx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(ctx); err != nil {
		return Result{Name: name, Detail: describeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Model + " reachable"}
}

// CheckDirectoryAccess verifies that path is a directory the process can
// list, create files in and traverse.
func CheckDirectoryAccess(name, path string) Result {
	fail := func(reason string) Result {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, reason)}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail("stat: " + err.Error())
	case !info.IsDir():
		return fail("is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("insufficient permissions: " + err.Error())
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

// CheckSystemDeps looks up the binaries reconciliation shells out to. The
// python module import is probed separately by CheckAlignmentModule.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Required for audio extraction and fallback clips"},
		{Name: "Python", Command: cfg.Alignment.PythonBinary, Description: "Runs the WhisperX alignment service"},
	}
	if cfg.AutoAudioTrack() {
		requirements = append(requirements, deps.Requirement{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Selects the audio track by language",
		})
	}
	return deps.CheckBinaries(requirements)
}

// CheckAlignmentModule verifies that the configured python can import the
// alignment service package.
func CheckAlignmentModule(ctx context.Context, cfg *config.Config, probe deps.ModuleProbe) Result {
	status := deps.CheckPythonModule(ctx, cfg.Alignment.PythonBinary, cfg.Alignment.Module, probe)
	return Result{Name: status.Name, Passed: status.Available, Detail: depDetail(status)}
}

func describeLLMError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "health check timed out (API unresponsive)"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "health check timed out (API unreachable)"
	default:
		return err.Error()
	}
}
