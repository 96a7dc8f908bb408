package script

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
)

const cleanPlaywrightSource = `import pytest
from playwright.sync_api import Page, expect

def test_login(page: Page):
    page.goto("https://example.com/login")
    expect(page).to_have_title("Dashboard")`

func TestCheckSource(t *testing.T) {
	t.Run("clean script has no defects", func(t *testing.T) {
		defects := CheckSource(cleanPlaywrightSource, FrameworkPlaywright)
		assert.Empty(t, defects)
	})

	t.Run("missing imports reported", func(t *testing.T) {
		source := "def test_x(page):\n    assert True"
		defects := CheckSource(source, FrameworkPlaywright)

		kinds := defectKinds(defects)
		assert.Equal(t, 2, kinds[DefectMissingImport])
	})

	t.Run("missing entrypoint reported", func(t *testing.T) {
		source := "import pytest\nfrom playwright.sync_api import Page, expect\nassert True"
		defects := CheckSource(source, FrameworkPlaywright)

		kinds := defectKinds(defects)
		assert.Equal(t, 1, kinds[DefectMissingEntrypoint])
	})

	t.Run("missing assertion reported", func(t *testing.T) {
		source := `import pytest
from playwright.sync_api import Page, expect

def test_login(page: Page):
    page.goto("https://example.com")`
		defects := CheckSource(source, FrameworkPlaywright)

		kinds := defectKinds(defects)
		assert.Equal(t, 1, kinds[DefectMissingAssertion])
	})

	t.Run("forbidden patterns reported with line numbers", func(t *testing.T) {
		source := cleanPlaywrightSource + "\n    os.system(\"id\")"
		defects := CheckSource(source, FrameworkPlaywright)

		require.Len(t, defects, 1)
		assert.Equal(t, DefectForbiddenPattern, defects[0].Kind)
		assert.Equal(t, "line 7", defects[0].Location)
	})

	t.Run("truncated source reported as syntax defect", func(t *testing.T) {
		source := cleanPlaywrightSource + "\n    if page.url:"
		defects := CheckSource(source, FrameworkPlaywright)

		kinds := defectKinds(defects)
		assert.Equal(t, 1, kinds[DefectSyntax])
	})

	t.Run("selenium imports checked for selenium artifacts", func(t *testing.T) {
		source := `import pytest
from selenium import webdriver

def test_login():
    driver = webdriver.Chrome()
    assert driver is not None`
		defects := CheckSource(source, FrameworkSelenium)
		assert.Empty(t, defects)
	})

	t.Run("is idempotent", func(t *testing.T) {
		source := "def test_x():\n    eval(\"1\")"
		first := CheckSource(source, FrameworkPlaywright)
		second := CheckSource(source, FrameworkPlaywright)
		assert.Equal(t, first, second)
	})
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()

	t.Run("accepts clean script", func(t *testing.T) {
		v := NewValidator(nil, log)
		a := NewArtifact(FrameworkPlaywright, cleanPlaywrightSource)

		verdict, err := v.Validate(ctx, a)
		require.NoError(t, err)
		assert.True(t, verdict.Accepted)
		assert.Empty(t, verdict.Defects)
		assert.Nil(t, verdict.Repaired)
		assert.Equal(t, a.Attempt, verdict.Attempt)
		assert.NoError(t, verdict.CheckContract(a))
	})

	t.Run("mechanical defects fixed without model", func(t *testing.T) {
		client := llm.NewStubClient("should not be called")
		v := NewValidator(client, log)

		source := "def test_x(page):\n    os.system(\"id\")\n    assert True"
		a := NewArtifact(FrameworkPlaywright, source)

		verdict, err := v.Validate(ctx, a)
		require.NoError(t, err)
		assert.False(t, verdict.Accepted)
		assert.NotEmpty(t, verdict.Defects)
		require.NotNil(t, verdict.Repaired)
		assert.Equal(t, a.Attempt+1, verdict.Repaired.Attempt)
		assert.NoError(t, verdict.CheckContract(a))

		// Imports prepended and the forbidden line dropped; the result is clean
		// and the model was never consulted.
		assert.Empty(t, CheckSource(verdict.Repaired.Source, FrameworkPlaywright))
		assert.Equal(t, 0, client.Calls())
	})

	t.Run("semantic defects repaired by model", func(t *testing.T) {
		client := llm.NewStubClient(cleanPlaywrightSource)
		v := NewValidator(client, log)

		source := `import pytest
from playwright.sync_api import Page, expect

def test_login(page: Page):
    page.goto("https://example.com")`
		a := NewArtifact(FrameworkPlaywright, source)

		verdict, err := v.Validate(ctx, a)
		require.NoError(t, err)
		assert.False(t, verdict.Accepted)
		require.NotNil(t, verdict.Repaired)
		assert.Equal(t, cleanPlaywrightSource, verdict.Repaired.Source)
		assert.Equal(t, 1, client.Calls())
	})

	t.Run("model failure falls back to mechanical fixes", func(t *testing.T) {
		client := llm.NewStubClient()
		client.QueueError(errors.New("model unavailable"))
		v := NewValidator(client, log)

		source := "def test_x(page):\n    page.goto(\"https://example.com\")"
		a := NewArtifact(FrameworkPlaywright, source)

		verdict, err := v.Validate(ctx, a)
		require.NoError(t, err)
		assert.False(t, verdict.Accepted)
		require.NotNil(t, verdict.Repaired)
		// The mechanically fixed source still lacks an assertion, but the
		// verdict contract holds and the loop decides what happens next.
		assert.Contains(t, verdict.Repaired.Source, "import pytest")
		assert.NoError(t, verdict.CheckContract(a))
	})

	t.Run("model timeout propagates", func(t *testing.T) {
		client := llm.NewStubClient()
		client.QueueError(llm.ErrTimeout)
		v := NewValidator(client, log)

		source := "def test_x(page):\n    page.goto(\"https://example.com\")"
		a := NewArtifact(FrameworkPlaywright, source)

		_, err := v.Validate(ctx, a)
		assert.ErrorIs(t, err, llm.ErrTimeout)
	})

	t.Run("validation of same artifact is stable", func(t *testing.T) {
		v := NewValidator(nil, log)
		a := NewArtifact(FrameworkPlaywright, cleanPlaywrightSource)

		first, err := v.Validate(ctx, a)
		require.NoError(t, err)
		second, err := v.Validate(ctx, a)
		require.NoError(t, err)

		assert.Equal(t, first.Accepted, second.Accepted)
		assert.Equal(t, first.Defects, second.Defects)
	})
}

func defectKinds(defects []Defect) map[DefectKind]int {
	kinds := map[DefectKind]int{}
	for _, d := range defects {
		kinds[d.Kind]++
	}
	return kinds
}
