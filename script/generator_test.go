package script

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/plan"
)

func testPlan() *plan.Plan {
	return &plan.Plan{Steps: []plan.Step{
		{
			ID:              1,
			Type:            plan.StepTypeBrowser,
			Action:          "navigate to https://example.com/login",
			SuccessCriteria: "login form is visible",
		},
		{
			ID:              2,
			Type:            plan.StepTypeLogic,
			Action:          "verify the page title",
			SuccessCriteria: "title contains Dashboard",
		},
	}}
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()
	objective := plan.Objective{Text: "log in and open the dashboard"}

	t.Run("produces first-attempt artifact", func(t *testing.T) {
		client := llm.NewStubClient(cleanPlaywrightSource)
		g := NewGenerator(client, FrameworkPlaywright, log)

		a, err := g.Generate(ctx, objective, testPlan())
		require.NoError(t, err)
		assert.Equal(t, 1, a.Attempt)
		assert.Equal(t, FrameworkPlaywright, a.Framework)
		assert.Equal(t, cleanPlaywrightSource, a.Source)
	})

	t.Run("prompt carries objective and plan", func(t *testing.T) {
		client := llm.NewStubClient(cleanPlaywrightSource)
		g := NewGenerator(client, FrameworkPlaywright, log)

		_, err := g.Generate(ctx, objective, testPlan())
		require.NoError(t, err)

		prompts := client.Prompts()
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "log in and open the dashboard")
		assert.Contains(t, prompts[0], "navigate to https://example.com/login")
		assert.Contains(t, prompts[0], "Playwright")
	})

	t.Run("model error wrapped as generation failure", func(t *testing.T) {
		client := llm.NewStubClient()
		client.QueueError(errors.New("connection reset"))
		g := NewGenerator(client, FrameworkPlaywright, log)

		_, err := g.Generate(ctx, objective, testPlan())
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("timeout propagates untranslated", func(t *testing.T) {
		client := llm.NewStubClient()
		client.QueueError(llm.ErrTimeout)
		g := NewGenerator(client, FrameworkPlaywright, log)

		_, err := g.Generate(ctx, objective, testPlan())
		assert.ErrorIs(t, err, llm.ErrTimeout)
		assert.NotErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("truncated output rejected", func(t *testing.T) {
		client := llm.NewStubClient("def test_login(page):")
		g := NewGenerator(client, FrameworkPlaywright, log)

		_, err := g.Generate(ctx, objective, testPlan())
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("invalid plan rejected before model call", func(t *testing.T) {
		client := llm.NewStubClient(cleanPlaywrightSource)
		g := NewGenerator(client, FrameworkPlaywright, log)

		_, err := g.Generate(ctx, objective, &plan.Plan{})
		assert.ErrorIs(t, err, plan.ErrEmptyPlan)
		assert.Equal(t, 0, client.Calls())
	})
}

func TestIncompleteReason(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		incomplete bool
	}{
		{"complete script", cleanPlaywrightSource, false},
		{"empty", "", true},
		{"whitespace only", "  \n\t ", true},
		{"unterminated docstring", "def test_x():\n    \"\"\"doc", true},
		{"line continuation at end", "x = 1 + \\", true},
		{"ends with colon", "def test_x():", true},
		{"ends with comma", "expect(page,", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := incompleteReason(tt.source)
			if tt.incomplete {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}
