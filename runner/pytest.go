package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/script"
)

// PytestRunner executes artifacts through pytest as a subprocess, with
// Playwright tracing on and allure results collected for the reporting
// collaborator.
type PytestRunner struct {
	pytestPath string
	timeout    time.Duration
	logger     logger.Logger
}

// NewPytestRunner creates a pytest-backed runner. pytestPath may be empty to
// use the one on PATH; timeout of zero disables the run deadline.
func NewPytestRunner(pytestPath string, timeout time.Duration, log logger.Logger) *PytestRunner {
	if pytestPath == "" {
		pytestPath = "pytest"
	}
	return &PytestRunner{
		pytestPath: pytestPath,
		timeout:    timeout,
		logger:     log,
	}
}

// Run materializes the artifact into workDir, executes it, and classifies
// the process outcome. pytest exits 0 when all tests pass and 1 when tests
// ran but assertions failed; every other exit code (usage errors, internal
// errors, no tests collected) means the test could not execute.
func (r *PytestRunner) Run(ctx context.Context, a *script.Artifact, workDir string) (*ExecutionResult, error) {
	testFile := filepath.Join(workDir, a.FileName())
	if err := os.WriteFile(testFile, []byte(a.Source), 0644); err != nil {
		return nil, fmt.Errorf("failed to write test file: %w", err)
	}

	reportDir := filepath.Join(workDir, "reports")
	allureDir := filepath.Join(workDir, "allure-results")
	for _, dir := range []string{reportDir, allureDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.pytestPath, testFile,
		"--maxfail=1", "--disable-warnings", "-q",
		"--tracing=on",
		fmt.Sprintf("--output=%s", reportDir),
		fmt.Sprintf("--alluredir=%s", allureDir),
	)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &ExecutionResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReportDir:  reportDir,
		TracePaths: collectTraces(reportDir),
		Duration:   duration,
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Status = StatusErrored
		result.TimedOut = true
		result.ExitCode = -1
	case runErr == nil:
		result.Status = StatusPassed
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.ExitCode == 1 {
				result.Status = StatusFailed
			} else {
				result.Status = StatusErrored
			}
		} else {
			// The process never started (missing binary, permission).
			result.Status = StatusErrored
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = runErr.Error()
			}
		}
	}

	r.logger.Info(ctx, "test execution finished", map[string]interface{}{
		"status":    string(result.Status),
		"exit_code": result.ExitCode,
		"timed_out": result.TimedOut,
		"duration":  duration.String(),
	})

	return result, nil
}

// collectTraces gathers Playwright trace archives produced under the report
// directory.
func collectTraces(reportDir string) []string {
	var traces []string
	filepath.WalkDir(reportDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".zip") {
			traces = append(traces, path)
		}
		return nil
	})
	return traces
}
