package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/plan"
	"github.com/kestrel-qa/testpilot/runner"
	"github.com/kestrel-qa/testpilot/script"
	"github.com/kestrel-qa/testpilot/storage"
)

// StagePlanner is the planner as seen by the orchestrator.
type StagePlanner interface {
	Plan(ctx context.Context, objective plan.Objective) (*plan.Plan, error)
}

// StageGenerator is the generator as seen by the orchestrator.
type StageGenerator interface {
	Generate(ctx context.Context, objective plan.Objective, p *plan.Plan) (*script.Artifact, error)
}

// Config holds the orchestrator's tuning knobs.
type Config struct {
	// MaxAttempts bounds the repair loop. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// StageTimeout caps each collaborator call (plan, generate,
	// validate/repair). Zero disables the per-stage deadline.
	StageTimeout time.Duration

	// RunPrefix is the blob-storage prefix under which run directories are
	// written. Defaults to "runs".
	RunPrefix string

	// WorkRoot is the local scratch directory where accepted artifacts are
	// materialized for execution. Defaults to "artifacts".
	WorkRoot string
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RunPrefix == "" {
		c.RunPrefix = "runs"
	}
	if c.WorkRoot == "" {
		c.WorkRoot = "artifacts"
	}
	return c
}

// RunReport is the caller-facing outcome of one workflow invocation.
type RunReport struct {
	RunID        string        `json:"run_id"`
	Outcome      Outcome       `json:"outcome"`
	ArtifactDir  string        `json:"artifact_dir"`
	FailureStage Stage         `json:"failure_stage,omitempty"`
	Status       runner.Status `json:"status,omitempty"`
	Attempts     int           `json:"attempts"`
}

// Orchestrator sequences planner → generator → repair loop → runner,
// persisting artifacts at each boundary. It is the sole owner of the
// workflow state and the only component that decides whether a failure is
// workflow-fatal, loop-level, or execution-level.
type Orchestrator struct {
	planner   StagePlanner
	generator StageGenerator
	validator StageValidator
	runner    runner.Runner
	store     storage.BlobStorage
	logger    logger.Logger
	config    Config
}

// NewOrchestrator wires the four stages together.
func NewOrchestrator(
	planner StagePlanner,
	generator StageGenerator,
	validator StageValidator,
	testRunner runner.Runner,
	store storage.BlobStorage,
	log logger.Logger,
	config Config,
) *Orchestrator {
	return &Orchestrator{
		planner:   planner,
		generator: generator,
		validator: validator,
		runner:    testRunner,
		store:     store,
		logger:    log,
		config:    config.withDefaults(),
	}
}

// Run processes one objective end-to-end. The returned error is non-nil
// only for fatal outcomes; exhausted and accepted_and_failed are defined
// terminal outcomes, surfaced through the report's outcome tag. The run
// directory always holds whatever the workflow produced before stopping.
func (o *Orchestrator) Run(ctx context.Context, objective plan.Objective) (*RunReport, error) {
	cfg := o.config
	state := NewWorkflowState(objective)
	runDir := path.Join(cfg.RunPrefix, state.RunID.String())

	log := o.logger.WithField("run_id", state.RunID.String())
	log.Info(ctx, "workflow started", map[string]interface{}{
		"objective": objective.Text,
		"target":    objective.Target,
	})

	report := &RunReport{
		RunID:       state.RunID.String(),
		ArtifactDir: runDir,
	}

	o.persistJSON(ctx, runDir, "objective.json", objective)

	// Stage 1: planning. Failures are fatal; there is nothing to run.
	p, err := runStage(ctx, cfg.StageTimeout, func(stageCtx context.Context) (*plan.Plan, error) {
		return o.planner.Plan(stageCtx, objective)
	})
	if err != nil {
		return o.fatal(ctx, state, report, StagePlanning, err)
	}
	state.Plan = p
	o.persistJSON(ctx, runDir, "plan.json", p)

	// Stage 2: generation. Also fatal on failure.
	if err := ctx.Err(); err != nil {
		return o.fatal(ctx, state, report, StageGeneration, err)
	}
	first, err := runStage(ctx, cfg.StageTimeout, func(stageCtx context.Context) (*script.Artifact, error) {
		return o.generator.Generate(stageCtx, objective, p)
	})
	if err != nil {
		return o.fatal(ctx, state, report, StageGeneration, err)
	}
	state.AddArtifact(first)

	// Stage 3: the repair loop. Rejections are recovered locally up to the
	// attempt budget; exhaustion is surfaced with the full history.
	validator := o.validator
	if cfg.StageTimeout > 0 {
		validator = &timeoutValidator{inner: o.validator, timeout: cfg.StageTimeout}
	}
	controller := NewController(validator, cfg.MaxAttempts, o.logger)
	loop, loopErr := controller.Run(ctx, state)
	o.persistHistory(ctx, runDir, state)
	report.Attempts = len(state.Verdicts)

	if loopErr != nil {
		if errors.Is(loopErr, ErrRepairExhausted) {
			state.Finish(OutcomeExhausted)
			report.Outcome = OutcomeExhausted
			report.FailureStage = StageRepairLoop
			o.persistJSON(ctx, runDir, "summary.json", state)
			log.Warn(ctx, "workflow exhausted repair attempts", map[string]interface{}{
				"attempts": report.Attempts,
			})
			return report, nil
		}
		return o.fatal(ctx, state, report, StageRepairLoop, loopErr)
	}

	// Stage 4: execution of the accepted artifact.
	if err := ctx.Err(); err != nil {
		return o.fatal(ctx, state, report, StageExecution, err)
	}
	workDir := filepath.Join(cfg.WorkRoot, state.RunID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return o.fatal(ctx, state, report, StageExecution, fmt.Errorf("failed to create work directory: %w", err))
	}

	result, err := o.runner.Run(ctx, loop.Artifact, workDir)
	if err != nil {
		return o.fatal(ctx, state, report, StageExecution, err)
	}
	state.Result = result
	report.Status = result.Status
	o.persistJSON(ctx, runDir, "result.json", result)
	o.persistTraces(ctx, runDir, result)

	switch result.Status {
	case runner.StatusPassed:
		state.Finish(OutcomeAcceptedAndPassed)
		report.Outcome = OutcomeAcceptedAndPassed
	case runner.StatusFailed:
		// The test executed and asserted false: a logic defect, reported
		// distinctly from environment errors.
		state.Finish(OutcomeAcceptedAndFailed)
		report.Outcome = OutcomeAcceptedAndFailed
	default:
		state.Finish(OutcomeFatalError)
		report.Outcome = OutcomeFatalError
		report.FailureStage = StageExecution
	}

	o.persistJSON(ctx, runDir, "summary.json", state)

	log.Info(ctx, "workflow finished", map[string]interface{}{
		"outcome":  string(report.Outcome),
		"status":   string(result.Status),
		"attempts": report.Attempts,
	})

	return report, nil
}

// runStage wraps a collaborator call with the configured per-stage timeout.
func runStage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// timeoutValidator applies the per-stage deadline to each validation call,
// so one slow repair cannot consume the whole run's budget.
type timeoutValidator struct {
	inner   StageValidator
	timeout time.Duration
}

func (t *timeoutValidator) Validate(ctx context.Context, a *script.Artifact) (*script.Verdict, error) {
	return runStage(ctx, t.timeout, func(stageCtx context.Context) (*script.Verdict, error) {
		return t.inner.Validate(stageCtx, a)
	})
}

// fatal finishes the run with a fatal outcome, persisting whatever the
// workflow produced so the failure is still diagnosable.
func (o *Orchestrator) fatal(ctx context.Context, state *WorkflowState, report *RunReport, stage Stage, err error) (*RunReport, error) {
	state.Finish(OutcomeFatalError)
	report.Outcome = OutcomeFatalError
	report.FailureStage = stage

	runDir := report.ArtifactDir
	o.persistHistory(ctx, runDir, state)
	o.persistJSON(ctx, runDir, "summary.json", state)

	o.logger.Error(ctx, "workflow failed", map[string]interface{}{
		"run_id": report.RunID,
		"stage":  string(stage),
		"error":  err.Error(),
	})

	if errors.Is(err, llm.ErrTimeout) {
		err = fmt.Errorf("%s stage: %w", stage, err)
	}

	return report, err
}

// persistHistory writes every artifact version and verdict to the run
// directory. Intermediate versions are retained for audit, never discarded.
func (o *Orchestrator) persistHistory(ctx context.Context, runDir string, state *WorkflowState) {
	for _, a := range state.Artifacts {
		name := fmt.Sprintf("artifact_v%d.py", a.Attempt)
		o.persistBytes(ctx, runDir, name, []byte(a.Source))
	}
	for _, v := range state.Verdicts {
		name := fmt.Sprintf("verdict_v%d.json", v.Attempt)
		o.persistJSON(ctx, runDir, name, v)
	}
}

// persistTraces copies runner trace archives into the run directory.
func (o *Orchestrator) persistTraces(ctx context.Context, runDir string, result *runner.ExecutionResult) {
	for i, tracePath := range result.TracePaths {
		data, err := os.ReadFile(tracePath)
		if err != nil {
			o.logger.Warn(ctx, "failed to read trace file", map[string]interface{}{
				"path":  tracePath,
				"error": err.Error(),
			})
			continue
		}
		name := fmt.Sprintf("trace_%d.zip", i+1)
		o.persistBytes(ctx, runDir, name, data)
	}
}

func (o *Orchestrator) persistJSON(ctx context.Context, runDir, name string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		o.logger.Error(ctx, "failed to marshal run artifact", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return
	}
	o.persistBytes(ctx, runDir, name, data)
}

func (o *Orchestrator) persistBytes(ctx context.Context, runDir, name string, data []byte) {
	if err := o.store.Upload(ctx, path.Join(runDir, name), bytes.NewReader(data)); err != nil {
		o.logger.Error(ctx, "failed to persist run artifact", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
	}
}
