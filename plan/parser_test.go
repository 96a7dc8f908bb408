package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanJSON = `[
  {"id": 1, "type": "browser_step", "step": "navigate to https://example.com/login", "success_criteria": "login form is visible", "url": "https://example.com/login"},
  {"id": 2, "type": "browser_step", "step": "fill in credentials and submit", "success_criteria": "dashboard page loads"},
  {"id": 3, "type": "logic_step", "step": "verify the page title contains Dashboard", "success_criteria": "title matches"}
]`

func TestParseResponse(t *testing.T) {
	t.Run("bare JSON array", func(t *testing.T) {
		p, err := ParseResponse(validPlanJSON)
		require.NoError(t, err)
		require.Len(t, p.Steps, 3)
		assert.Equal(t, 1, p.Steps[0].ID)
		assert.Equal(t, StepTypeBrowser, p.Steps[0].Type)
		assert.Equal(t, "https://example.com/login", p.Steps[0].URL)
		assert.Equal(t, StepTypeLogic, p.Steps[2].Type)
	})

	t.Run("markdown fenced response", func(t *testing.T) {
		p, err := ParseResponse("```json\n" + validPlanJSON + "\n```")
		require.NoError(t, err)
		assert.Len(t, p.Steps, 3)
	})

	t.Run("array wrapped in prose", func(t *testing.T) {
		raw := "Here is the plan you asked for:\n" + validPlanJSON + "\nLet me know if you need changes."
		p, err := ParseResponse(raw)
		require.NoError(t, err)
		assert.Len(t, p.Steps, 3)
	})

	t.Run("trailing commas are removed", func(t *testing.T) {
		raw := `[{"id": 1, "type": "browser_step", "step": "open page", "success_criteria": "page loads",},]`
		p, err := ParseResponse(raw)
		require.NoError(t, err)
		assert.Len(t, p.Steps, 1)
	})

	t.Run("empty response", func(t *testing.T) {
		_, err := ParseResponse("")
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})

	t.Run("prose without JSON", func(t *testing.T) {
		_, err := ParseResponse("I cannot produce a plan for this objective.")
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ParseResponse(`[{"id": 1, "type": `)
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})

	t.Run("empty array", func(t *testing.T) {
		_, err := ParseResponse("[]")
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})

	t.Run("invalid step ids", func(t *testing.T) {
		raw := `[{"id": 5, "type": "browser_step", "step": "open page", "success_criteria": "page loads"}]`
		_, err := ParseResponse(raw)
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})

	t.Run("missing required fields", func(t *testing.T) {
		raw := `[{"id": 1, "type": "browser_step"}]`
		_, err := ParseResponse(raw)
		assert.ErrorIs(t, err, ErrPlanningFailed)
	})
}
