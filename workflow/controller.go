package workflow

import (
	"context"
	"fmt"

	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/script"
)

// DefaultMaxAttempts bounds the repair loop when no limit is configured.
// Every attempt is a paid, slow collaborator call, so the bound stays small.
const DefaultMaxAttempts = 3

// loopState enumerates the states of the repair loop state machine.
type loopState int

const (
	stateGenerated loopState = iota
	stateValidating
	stateRejected
	stateAccepted
	stateExhausted
)

func (s loopState) String() string {
	switch s {
	case stateGenerated:
		return "generated"
	case stateValidating:
		return "validating"
	case stateRejected:
		return "rejected"
	case stateAccepted:
		return "accepted"
	case stateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// StageValidator is the validator as seen by the controller.
type StageValidator interface {
	Validate(ctx context.Context, a *script.Artifact) (*script.Verdict, error)
}

// LoopOutcome is the controller's result. On exhaustion Artifact holds the
// best candidate (the last rejected version) and Verdicts the full defect
// history, so the caller can still report a useful failure.
type LoopOutcome struct {
	Accepted bool
	Artifact *script.Artifact
	Verdicts []*script.Verdict
}

// Controller drives the generate → validate → repair cycle, the only cyclic
// component in the workflow. It is an explicit finite-state transition
// function: the attempt number increases strictly monotonically and the
// loop terminates in at most maxAttempts validation calls for any verdict
// sequence. That bound is the primary safety property of the system.
type Controller struct {
	validator   StageValidator
	maxAttempts int
	logger      logger.Logger
}

// NewController creates a repair loop controller. maxAttempts below 1 falls
// back to DefaultMaxAttempts.
func NewController(validator StageValidator, maxAttempts int, log logger.Logger) *Controller {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Controller{
		validator:   validator,
		maxAttempts: maxAttempts,
		logger:      log,
	}
}

// Run executes the repair loop over the state's current artifact, recording
// every artifact version and verdict in the state. It returns
// ErrRepairExhausted alongside the loop outcome when the attempt budget is
// spent, and ErrValidatorContract when the validator breaks its contract.
func (c *Controller) Run(ctx context.Context, state *WorkflowState) (*LoopOutcome, error) {
	current := state.CurrentArtifact()
	if current == nil {
		return nil, ErrNoArtifact
	}

	outcome := &LoopOutcome{}
	st := stateGenerated
	var verdict *script.Verdict

	for {
		switch st {
		case stateGenerated:
			// Cancellation is cooperative: checked at the iteration boundary,
			// before the next blocking collaborator call.
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			st = stateValidating

		case stateValidating:
			v, err := c.validator.Validate(ctx, current)
			if err != nil {
				return nil, err
			}
			if err := v.CheckContract(current); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidatorContract, err)
			}

			verdict = v
			state.AddVerdict(v)
			outcome.Verdicts = append(outcome.Verdicts, v)

			if v.Accepted {
				st = stateAccepted
			} else {
				st = stateRejected
			}

		case stateRejected:
			c.logger.Info(ctx, "artifact rejected", map[string]interface{}{
				"attempt":      current.Attempt,
				"max_attempts": c.maxAttempts,
				"defects":      len(verdict.Defects),
			})

			if current.Attempt < c.maxAttempts {
				current = verdict.Repaired
				state.AddArtifact(current)
				st = stateGenerated
			} else {
				st = stateExhausted
			}

		case stateAccepted:
			c.logger.Info(ctx, "artifact accepted", map[string]interface{}{
				"attempt": current.Attempt,
			})
			outcome.Accepted = true
			outcome.Artifact = current
			return outcome, nil

		case stateExhausted:
			c.logger.Warn(ctx, "repair loop exhausted", map[string]interface{}{
				"attempts": current.Attempt,
			})
			outcome.Artifact = current
			return outcome, ErrRepairExhausted
		}
	}
}
