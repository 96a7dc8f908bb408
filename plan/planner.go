package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
)

// plannerPromptTemplate decomposes an objective into executable browser
// automation steps. The model must return a bare JSON array.
const plannerPromptTemplate = `You are a planner that decomposes test objectives into executable browser automation steps.

OBJECTIVE: %s
%s
Create a step-by-step plan to accomplish EXACTLY this objective using browser automation.

MANDATORY: Return ONLY valid JSON in this exact format with ALL required fields:
[{"id": 1, "type": "browser_step", "step": "[specific action from objective]", "success_criteria": "[how to verify success]"},
 {"id": 2, "type": "logic_step", "step": "[another specific action]", "success_criteria": "[verification method]"}]

CRITICAL REQUIREMENTS:
- EVERY step MUST have ALL FOUR fields: id (number), type, step (description), success_criteria
- type must be either "browser_step" or "logic_step"
- Step ids start at 1 and increase by 1
- The step field contains SPECIFIC actions that directly accomplish the objective
- success_criteria describes MEASURABLE verification of the step's success
- Where known, include "url", "selector", or "value" fields with concrete values
- DO NOT include generic steps like 'Open the browser'
- Break the objective down into 2-6 concrete steps
- Return ONLY the JSON array - no markdown, no explanations, no extra text`

// Planner converts an objective into an ordered plan of executable steps.
// It performs no internal retries: a malformed model response propagates as
// ErrPlanningFailed.
type Planner struct {
	client llm.Client
	logger logger.Logger
}

// NewPlanner creates a new planner backed by the given model client.
func NewPlanner(client llm.Client, log logger.Logger) *Planner {
	return &Planner{
		client: client,
		logger: log,
	}
}

// Plan produces a validated plan for the objective.
func (p *Planner) Plan(ctx context.Context, objective Objective) (*Plan, error) {
	if err := objective.Validate(); err != nil {
		return nil, err
	}

	target := ""
	if objective.Target != "" {
		target = fmt.Sprintf("TARGET: %s\n", objective.Target)
	}

	prompt := fmt.Sprintf(plannerPromptTemplate, objective.Text, target)

	raw, err := p.client.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPlanningFailed, err)
	}

	parsed, err := ParseResponse(raw)
	if err != nil {
		p.logger.Error(ctx, "failed to parse planner response", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	p.logger.Info(ctx, "plan generated", map[string]interface{}{
		"steps": len(parsed.Steps),
	})

	return parsed, nil
}
