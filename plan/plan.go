package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyObjective is returned when an objective has no text.
	ErrEmptyObjective = errors.New("objective text is required")

	// ErrPlanningFailed is returned when the model response cannot be turned
	// into a usable plan. Planning failures are fatal to the workflow and are
	// never retried here; retry policy belongs to the orchestrator.
	ErrPlanningFailed = errors.New("planning failed")

	// ErrEmptyPlan is returned when a parsed plan contains no steps.
	ErrEmptyPlan = errors.New("plan must contain at least one step")

	// ErrInvalidStep is returned when a step is structurally invalid.
	ErrInvalidStep = errors.New("invalid plan step")
)

// StepType classifies a plan step.
type StepType string

const (
	// StepTypeBrowser is a step resolved to browser actions (navigate, click, type).
	StepTypeBrowser StepType = "browser_step"

	// StepTypeLogic is a step resolved to assertions or data checks.
	StepTypeLogic StepType = "logic_step"
)

// IsValid checks if the step type is a known type.
func (t StepType) IsValid() bool {
	switch t {
	case StepTypeBrowser, StepTypeLogic:
		return true
	default:
		return false
	}
}

// Objective is the immutable free-text goal supplied by the caller.
type Objective struct {
	// Text is the natural-language goal. Required.
	Text string `json:"text"`

	// Target optionally names the system under test (usually a URL).
	Target string `json:"target,omitempty"`
}

// Validate checks that the objective is usable.
func (o Objective) Validate() error {
	if strings.TrimSpace(o.Text) == "" {
		return ErrEmptyObjective
	}
	return nil
}

// Step is one independently actionable unit of a plan.
type Step struct {
	ID              int      `json:"id"`
	Type            StepType `json:"type"`
	Action          string   `json:"step"`
	SuccessCriteria string   `json:"success_criteria"`

	// Optional structured parameters extracted by the planner.
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Plan is an ordered, read-only sequence of steps produced once by the
// planner. Steps are totally ordered by ID starting at 1.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Validate checks plan invariants: at least one step, strictly ordered IDs,
// known step types, and non-empty actions and success criteria.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return ErrEmptyPlan
	}

	for i, s := range p.Steps {
		if s.ID != i+1 {
			return fmt.Errorf("%w: step %d has id %d, want %d", ErrInvalidStep, i, s.ID, i+1)
		}
		if !s.Type.IsValid() {
			return fmt.Errorf("%w: step %d has unknown type %q", ErrInvalidStep, i, s.Type)
		}
		if strings.TrimSpace(s.Action) == "" {
			return fmt.Errorf("%w: step %d has no action", ErrInvalidStep, i)
		}
		if strings.TrimSpace(s.SuccessCriteria) == "" {
			return fmt.Errorf("%w: step %d has no success criteria", ErrInvalidStep, i)
		}
	}

	return nil
}
