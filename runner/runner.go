package runner

import (
	"context"
	"time"

	"github.com/kestrel-qa/testpilot/script"
)

// Status classifies the outcome of running an accepted artifact. The failed
// vs errored distinction is load-bearing: failed means the test executed and
// asserted false (a logic defect), errored means it could not execute at all
// (an environment defect). The two are never collapsed.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored:
		return true
	default:
		return false
	}
}

// ExecutionResult is the structured outcome of one test execution.
type ExecutionResult struct {
	Status     Status        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	ReportDir  string        `json:"report_dir,omitempty"`
	TracePaths []string      `json:"trace_paths,omitempty"`
	TimedOut   bool          `json:"timed_out"`
	Duration   time.Duration `json:"duration"`
}

// Runner hands an accepted artifact to the external test runner and collects
// a structured result. Implementations never inspect or modify artifact
// content; they only materialize it into the working directory and execute.
type Runner interface {
	Run(ctx context.Context, a *script.Artifact, workDir string) (*ExecutionResult, error)
}
