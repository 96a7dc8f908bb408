package workflow

import (
	"context"
	"errors"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/plan"
	"github.com/kestrel-qa/testpilot/runner"
	"github.com/kestrel-qa/testpilot/script"
	"github.com/kestrel-qa/testpilot/storage"
)

type stubPlanner struct {
	plan *plan.Plan
	err  error
}

func (s *stubPlanner) Plan(ctx context.Context, objective plan.Objective) (*plan.Plan, error) {
	return s.plan, s.err
}

type stubGenerator struct {
	source string
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, objective plan.Objective, p *plan.Plan) (*script.Artifact, error) {
	if s.err != nil {
		return nil, s.err
	}
	return script.NewArtifact(script.FrameworkPlaywright, s.source), nil
}

type stubRunner struct {
	status runner.Status
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, a *script.Artifact, workDir string) (*runner.ExecutionResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &runner.ExecutionResult{Status: s.status, ExitCode: exitCodeFor(s.status)}, nil
}

func exitCodeFor(status runner.Status) int {
	switch status {
	case runner.StatusPassed:
		return 0
	case runner.StatusFailed:
		return 1
	default:
		return 2
	}
}

func okPlan() *plan.Plan {
	return &plan.Plan{Steps: []plan.Step{{
		ID:              1,
		Type:            plan.StepTypeBrowser,
		Action:          "navigate to the page",
		SuccessCriteria: "page loads",
	}}}
}

type orchestratorFixture struct {
	planner   *stubPlanner
	generator *stubGenerator
	validator *scriptedValidator
	runner    *stubRunner
	store     storage.BlobStorage
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return &orchestratorFixture{
		planner:   &stubPlanner{plan: okPlan()},
		generator: &stubGenerator{source: "def test_x(page):\n    assert True"},
		validator: &scriptedValidator{behaviors: []func(a *script.Artifact) (*script.Verdict, error){acceptBehavior()}},
		runner:    &stubRunner{status: runner.StatusPassed},
		store:     store,
	}
}

func (f *orchestratorFixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	return NewOrchestrator(
		f.planner, f.generator, f.validator, f.runner, f.store,
		logger.NewTestLogger(),
		Config{MaxAttempts: 3, WorkRoot: t.TempDir()},
	)
}

func (f *orchestratorFixture) assertStored(t *testing.T, runDir, name string) {
	t.Helper()
	exists, err := f.store.Exists(context.Background(), path.Join(runDir, name))
	require.NoError(t, err)
	assert.True(t, exists, "expected %s in run directory", name)
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	objective := plan.Objective{Text: "check the login flow"}

	t.Run("accepted and passed", func(t *testing.T) {
		f := newFixture(t)
		report, err := f.orchestrator(t).Run(ctx, objective)
		require.NoError(t, err)

		assert.Equal(t, OutcomeAcceptedAndPassed, report.Outcome)
		assert.Equal(t, runner.StatusPassed, report.Status)
		assert.Equal(t, 1, report.Attempts)
		assert.Empty(t, report.FailureStage)
		assert.Equal(t, 1, f.runner.calls)

		for _, name := range []string{"objective.json", "plan.json", "artifact_v1.py", "verdict_v1.json", "result.json", "summary.json"} {
			f.assertStored(t, report.ArtifactDir, name)
		}
	})

	t.Run("rejection repaired then passed", func(t *testing.T) {
		f := newFixture(t)
		f.validator.behaviors = []func(a *script.Artifact) (*script.Verdict, error){
			rejectBehavior(), acceptBehavior(),
		}

		report, err := f.orchestrator(t).Run(ctx, objective)
		require.NoError(t, err)

		assert.Equal(t, OutcomeAcceptedAndPassed, report.Outcome)
		assert.Equal(t, 2, report.Attempts)

		// Both script versions and both verdicts are retained.
		for _, name := range []string{"artifact_v1.py", "artifact_v2.py", "verdict_v1.json", "verdict_v2.json"} {
			f.assertStored(t, report.ArtifactDir, name)
		}
	})

	t.Run("accepted but test failed", func(t *testing.T) {
		f := newFixture(t)
		f.runner.status = runner.StatusFailed

		report, err := f.orchestrator(t).Run(ctx, objective)
		require.NoError(t, err)

		assert.Equal(t, OutcomeAcceptedAndFailed, report.Outcome)
		assert.Equal(t, runner.StatusFailed, report.Status)
		f.assertStored(t, report.ArtifactDir, "result.json")
	})

	t.Run("execution environment error is fatal but keeps the result", func(t *testing.T) {
		f := newFixture(t)
		f.runner.status = runner.StatusErrored

		report, err := f.orchestrator(t).Run(ctx, objective)
		require.NoError(t, err)

		assert.Equal(t, OutcomeFatalError, report.Outcome)
		assert.Equal(t, StageExecution, report.FailureStage)
		assert.Equal(t, runner.StatusErrored, report.Status)
		f.assertStored(t, report.ArtifactDir, "result.json")
	})

	t.Run("exhaustion is a defined outcome, not an error", func(t *testing.T) {
		f := newFixture(t)
		f.validator.behaviors = []func(a *script.Artifact) (*script.Verdict, error){rejectBehavior()}

		report, err := f.orchestrator(t).Run(ctx, objective)
		require.NoError(t, err)

		assert.Equal(t, OutcomeExhausted, report.Outcome)
		assert.Equal(t, StageRepairLoop, report.FailureStage)
		assert.Equal(t, 3, report.Attempts)
		assert.Equal(t, 0, f.runner.calls)

		// The full history is persisted for the report.
		for _, name := range []string{"artifact_v1.py", "artifact_v2.py", "artifact_v3.py", "verdict_v1.json", "verdict_v2.json", "verdict_v3.json"} {
			f.assertStored(t, report.ArtifactDir, name)
		}
	})

	t.Run("planning failure is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.planner.err = plan.ErrPlanningFailed

		report, err := f.orchestrator(t).Run(ctx, objective)
		assert.ErrorIs(t, err, plan.ErrPlanningFailed)
		assert.Equal(t, OutcomeFatalError, report.Outcome)
		assert.Equal(t, StagePlanning, report.FailureStage)
		assert.Equal(t, 0, f.runner.calls)
		f.assertStored(t, report.ArtifactDir, "summary.json")
	})

	t.Run("generation failure is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.generator.err = script.ErrGenerationFailed

		report, err := f.orchestrator(t).Run(ctx, objective)
		assert.ErrorIs(t, err, script.ErrGenerationFailed)
		assert.Equal(t, OutcomeFatalError, report.Outcome)
		assert.Equal(t, StageGeneration, report.FailureStage)
		f.assertStored(t, report.ArtifactDir, "plan.json")
	})

	t.Run("validator contract violation is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.validator.behaviors = []func(a *script.Artifact) (*script.Verdict, error){
			func(a *script.Artifact) (*script.Verdict, error) {
				return &script.Verdict{Accepted: false, Attempt: a.Attempt}, nil
			},
		}

		report, err := f.orchestrator(t).Run(ctx, objective)
		assert.ErrorIs(t, err, ErrValidatorContract)
		assert.Equal(t, OutcomeFatalError, report.Outcome)
		assert.Equal(t, StageRepairLoop, report.FailureStage)
		assert.Equal(t, 0, f.runner.calls)
	})

	t.Run("runner error is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.runner.err = errors.New("pytest binary missing")

		report, err := f.orchestrator(t).Run(ctx, objective)
		require.Error(t, err)
		assert.Equal(t, OutcomeFatalError, report.Outcome)
		assert.Equal(t, StageExecution, report.FailureStage)
	})

	t.Run("distinct runs use distinct directories", func(t *testing.T) {
		f := newFixture(t)
		o := f.orchestrator(t)

		first, err := o.Run(ctx, objective)
		require.NoError(t, err)
		second, err := o.Run(ctx, objective)
		require.NoError(t, err)

		assert.NotEqual(t, first.RunID, second.RunID)
		assert.NotEqual(t, first.ArtifactDir, second.ArtifactDir)
	})
}
