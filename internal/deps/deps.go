package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Requirement names an external binary and why wordsync needs it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after a PATH lookup. Command holds the resolved
// path when Available, and Detail explains why not otherwise.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = lookup(req)
	}
	return results
}

func lookup(req Requirement) Status {
	st := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		return st
	}
	st.Command, st.Available = path, true
	return st
}

// ModuleProbe runs python with args and reports whether it exited cleanly.
type ModuleProbe func(ctx context.Context, python string, args ...string) error

const moduleProbeTimeout = 30 * time.Second

// CheckPythonModule verifies that python can import module. The import runs
// with a timeout because heavy ML packages can take a while to load.
func CheckPythonModule(ctx context.Context, python, module string, probe ModuleProbe) Status {
	module = strings.TrimSpace(module)
	status := Status{
		Name:        "Alignment service",
		Command:     fmt.Sprintf("%s -m %s", strings.TrimSpace(python), module),
		Description: "Required for forced alignment",
	}
	pkg, _, _ := strings.Cut(module, ".")
	if pkg == "" {
		status.Detail = "module not configured"
		return status
	}
	if probe == nil {
		probe = execProbe
	}

	probeCtx, cancel := context.WithTimeout(ctx, moduleProbeTimeout)
	defer cancel()
	if err := probe(probeCtx, python, "-c", "import "+pkg); err != nil {
		status.Detail = fmt.Sprintf("import %s failed: %v", pkg, err)
		return status
	}
	status.Available = true
	return status
}

func execProbe(ctx context.Context, python string, args ...string) error {
	cmd := exec.CommandContext(ctx, python, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if msg := lastLine(string(output)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
