package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-qa/testpilot/plan"
	"github.com/kestrel-qa/testpilot/runner"
	"github.com/kestrel-qa/testpilot/script"
)

// Outcome tags the terminal state of a workflow run. Every terminal state
// maps to exactly one tag.
type Outcome string

const (
	// OutcomeAcceptedAndPassed means an artifact was accepted and the test passed.
	OutcomeAcceptedAndPassed Outcome = "accepted_and_passed"

	// OutcomeAcceptedAndFailed means an artifact was accepted but the test
	// executed and asserted false.
	OutcomeAcceptedAndFailed Outcome = "accepted_and_failed"

	// OutcomeExhausted means the repair loop ran out of attempts.
	OutcomeExhausted Outcome = "exhausted"

	// OutcomeFatalError means a stage failed in a way that left nothing to run.
	OutcomeFatalError Outcome = "fatal_error"
)

// Stage names the stage at which a run failed. Each stage has a different
// remediation story: fix the objective, fix the environment, or regenerate.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageGeneration Stage = "generation"
	StageRepairLoop Stage = "repair_loop"
	StageExecution  Stage = "execution"
)

// WorkflowState is the single mutable aggregate threaded through every
// stage. It is owned by the orchestrator; only the orchestrator and the
// repair loop controller may mutate it, never concurrently. Each workflow
// invocation owns an independent instance.
//
// All intermediate artifacts and verdicts are retained for audit: repair
// never discards a version.
type WorkflowState struct {
	RunID     uuid.UUID               `json:"run_id"`
	Objective plan.Objective          `json:"objective"`
	Plan      *plan.Plan              `json:"plan,omitempty"`
	Artifacts []*script.Artifact      `json:"artifacts,omitempty"`
	Verdicts  []*script.Verdict       `json:"verdicts,omitempty"`
	Result    *runner.ExecutionResult `json:"result,omitempty"`
	Outcome   Outcome                 `json:"outcome,omitempty"`
	StartedAt time.Time               `json:"started_at"`
	EndedAt   *time.Time              `json:"ended_at,omitempty"`
}

// NewWorkflowState creates the state for a fresh run.
func NewWorkflowState(objective plan.Objective) *WorkflowState {
	return &WorkflowState{
		RunID:     uuid.New(),
		Objective: objective,
		StartedAt: time.Now(),
	}
}

// AddArtifact records a new artifact version.
func (s *WorkflowState) AddArtifact(a *script.Artifact) {
	s.Artifacts = append(s.Artifacts, a)
}

// AddVerdict records a verdict in the history.
func (s *WorkflowState) AddVerdict(v *script.Verdict) {
	s.Verdicts = append(s.Verdicts, v)
}

// CurrentArtifact returns the most recent artifact version, or nil before
// generation.
func (s *WorkflowState) CurrentArtifact() *script.Artifact {
	if len(s.Artifacts) == 0 {
		return nil
	}
	return s.Artifacts[len(s.Artifacts)-1]
}

// Finish stamps the terminal outcome.
func (s *WorkflowState) Finish(outcome Outcome) {
	now := time.Now()
	s.Outcome = outcome
	s.EndedAt = &now
}
