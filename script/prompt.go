package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrel-qa/testpilot/plan"
)

// BuildGenerationPrompt constructs the prompt that turns a plan into a test
// script. All caller-derived text is sanitized and checked for injection
// patterns before it is embedded; XML-style tags keep a clear boundary
// between instructions and data.
func BuildGenerationPrompt(objective plan.Objective, p *plan.Plan, framework Framework) (string, error) {
	if !framework.IsValid() {
		return "", ErrInvalidFramework
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	objectiveText := SanitizeText(objective.Text)
	if err := CheckSuspicious(objectiveText, "objective"); err != nil {
		return "", err
	}

	steps := make([]plan.Step, len(p.Steps))
	for i, s := range p.Steps {
		s.Action = SanitizeText(s.Action)
		s.SuccessCriteria = SanitizeText(s.SuccessCriteria)
		if err := CheckSuspicious(s.Action, fmt.Sprintf("step[%d].step", i)); err != nil {
			return "", err
		}
		if err := CheckSuspicious(s.SuccessCriteria, fmt.Sprintf("step[%d].success_criteria", i)); err != nil {
			return "", err
		}
		steps[i] = s
	}

	stepsJSON, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal steps: %w", err)
	}

	prompt := fmt.Sprintf(`Generate a Python pytest test file using %s for the following test plan.

<objective>%s</objective>

<test_plan>
%s
</test_plan>

<requirements>
- Use Python 3.x syntax
- Return ONLY the Python code without markdown formatting or code blocks
- Do not include any explanatory text before or after the code

%s

The test must:
1. Define exactly one test function whose name starts with test_
2. Execute each plan step in order
3. Verify every success criterion with an explicit assertion
4. Print a short progress message as it executes each step
5. Never call input(), eval(), exec(), os.system() or spawn subprocesses
</requirements>`,
		frameworkName(framework),
		objectiveText,
		string(stepsJSON),
		frameworkInstructions(framework),
	)

	return prompt, nil
}

// BuildRepairPrompt constructs the prompt asking the model to fix every
// listed defect in a rejected script.
func BuildRepairPrompt(a *Artifact, defects []Defect) string {
	var issues strings.Builder
	for _, d := range defects {
		issues.WriteString(fmt.Sprintf("- [%s] %s", d.Kind, d.Description))
		if d.Location != "" {
			issues.WriteString(fmt.Sprintf(" (%s)", d.Location))
		}
		issues.WriteString("\n")
	}

	return fmt.Sprintf(`You are a senior QA engineer reviewing %s pytest scripts. Fix ALL of the following issues in this test script:

<issues>
%s</issues>

<script>
%s
</script>

Return ONLY the corrected Python code, no explanations or markdown.`,
		frameworkName(a.Framework),
		issues.String(),
		a.Source,
	)
}

func frameworkName(f Framework) string {
	if f == FrameworkSelenium {
		return "Selenium"
	}
	return "Playwright"
}

func frameworkInstructions(f Framework) string {
	if f == FrameworkSelenium {
		return `For Selenium:
- Use selenium.webdriver for browser automation
- Use WebDriverWait with expected_conditions for element waits
- Include proper imports: from selenium import webdriver, from selenium.webdriver.common.by import By
- Include: import pytest
- Quit the driver in a finally block`
	}

	return `For Playwright:
- Use the pytest-playwright page fixture: def test_...(page: Page)
- Include proper imports: import pytest, from playwright.sync_api import Page, expect
- Use expect() for assertions, e.g. expect(page).to_have_title(...)
- Use page.goto(url) for navigation and page.wait_for_selector for waits
- Never construct a Page object manually`
}
