package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
)

func TestPlanner_Plan(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()

	t.Run("produces validated plan", func(t *testing.T) {
		client := llm.NewStubClient(validPlanJSON)
		planner := NewPlanner(client, log)

		p, err := planner.Plan(ctx, Objective{Text: "log in and open the dashboard"})
		require.NoError(t, err)
		assert.Len(t, p.Steps, 3)
		assert.Equal(t, 1, client.Calls())
	})

	t.Run("target appears in prompt", func(t *testing.T) {
		client := llm.NewStubClient(validPlanJSON)
		planner := NewPlanner(client, log)

		_, err := planner.Plan(ctx, Objective{
			Text:   "log in and open the dashboard",
			Target: "https://example.com",
		})
		require.NoError(t, err)

		prompts := client.Prompts()
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "TARGET: https://example.com")
		assert.Contains(t, prompts[0], "log in and open the dashboard")
	})

	t.Run("empty objective rejected before model call", func(t *testing.T) {
		client := llm.NewStubClient(validPlanJSON)
		planner := NewPlanner(client, log)

		_, err := planner.Plan(ctx, Objective{})
		assert.ErrorIs(t, err, ErrEmptyObjective)
		assert.Equal(t, 0, client.Calls())
	})

	t.Run("model error wrapped as planning failure", func(t *testing.T) {
		client := llm.NewStubClient()
		client.QueueError(errors.New("connection refused"))
		planner := NewPlanner(client, log)

		_, err := planner.Plan(ctx, Objective{Text: "check the checkout flow"})
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})

	t.Run("timeout propagates untranslated", func(t *testing.T) {
		client := llm.NewStubClient()
		client.QueueError(llm.ErrTimeout)
		planner := NewPlanner(client, log)

		_, err := planner.Plan(ctx, Objective{Text: "check the checkout flow"})
		assert.ErrorIs(t, err, llm.ErrTimeout)
		assert.NotErrorIs(t, err, ErrPlanningFailed)
	})

	t.Run("unparsable response is a planning failure", func(t *testing.T) {
		client := llm.NewStubClient("I don't know how to plan that.")
		planner := NewPlanner(client, log)

		_, err := planner.Plan(ctx, Objective{Text: "check the checkout flow"})
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})
}
