package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
)

// forbiddenPatterns are constructs the execution sandbox rejects. Each entry
// maps the source fragment to a human-readable reason.
var forbiddenPatterns = []struct {
	Pattern string
	Reason  string
}{
	{"input(", "interactive input blocks unattended execution"},
	{"os.system", "shell escape is not allowed in the sandbox"},
	{"subprocess", "spawning subprocesses is not allowed in the sandbox"},
	{"eval(", "dynamic evaluation is not allowed in the sandbox"},
	{"exec(", "dynamic evaluation is not allowed in the sandbox"},
}

// Validator statically checks a candidate artifact and, when rejecting,
// synthesizes a repaired artifact addressing every listed defect. Mechanical
// defects are fixed directly; the rest go to the model collaborator. The
// check itself is pure: validating an accepted artifact twice yields the
// same accepted verdict.
type Validator struct {
	client llm.Client
	logger logger.Logger
}

// NewValidator creates a validator. client may be nil, in which case repairs
// are limited to mechanical fixes.
func NewValidator(client llm.Client, log logger.Logger) *Validator {
	return &Validator{
		client: client,
		logger: log,
	}
}

// Validate checks the artifact and returns a verdict. A rejection always
// carries at least one defect and a repaired artifact at attempt+1.
func (v *Validator) Validate(ctx context.Context, a *Artifact) (*Verdict, error) {
	defects := CheckSource(a.Source, a.Framework)

	if len(defects) == 0 {
		return &Verdict{
			Accepted:  true,
			Attempt:   a.Attempt,
			CheckedAt: time.Now(),
		}, nil
	}

	v.logger.Info(ctx, "script rejected", map[string]interface{}{
		"artifact_id": a.ID.String(),
		"attempt":     a.Attempt,
		"defects":     len(defects),
	})

	fixed := applyMechanicalFixes(a.Source, a.Framework, defects)

	// Anything the mechanical pass could not resolve goes to the model.
	if remaining := CheckSource(fixed, a.Framework); len(remaining) > 0 && v.client != nil {
		repaired, err := v.client.Complete(ctx, BuildRepairPrompt(a, defects))
		switch {
		case err == nil && strings.TrimSpace(repaired) != "":
			fixed = repaired
		case errors.Is(err, llm.ErrTimeout):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// Keep the mechanically fixed source; the next loop iteration
			// will judge whether it is good enough.
			v.logger.Warn(ctx, "model repair failed, keeping mechanical fixes", map[string]interface{}{
				"artifact_id": a.ID.String(),
				"error":       fmt.Sprintf("%v", err),
			})
		}
	}

	return &Verdict{
		Accepted:  false,
		Attempt:   a.Attempt,
		Defects:   defects,
		Repaired:  a.NextAttempt(fixed),
		CheckedAt: time.Now(),
	}, nil
}

// CheckSource performs the structural checks on a script: required imports,
// a test entry point, at least one assertion, absence of forbidden patterns,
// and basic parseability. It is a pure function of its inputs.
func CheckSource(source string, framework Framework) []Defect {
	var defects []Defect

	for _, imp := range requiredImports(framework) {
		if !strings.Contains(source, imp.Check) {
			defects = append(defects, Defect{
				Kind:        DefectMissingImport,
				Description: fmt.Sprintf("missing required import %q", imp.Check),
			})
		}
	}

	if !strings.Contains(source, "def test_") {
		defects = append(defects, Defect{
			Kind:        DefectMissingEntrypoint,
			Description: "no test function found (expected a def test_... definition)",
		})
	}

	if !strings.Contains(source, "expect(") && !strings.Contains(source, "assert ") {
		defects = append(defects, Defect{
			Kind:        DefectMissingAssertion,
			Description: "script verifies nothing (no expect() call or assert statement)",
		})
	}

	for i, line := range strings.Split(source, "\n") {
		for _, fp := range forbiddenPatterns {
			if strings.Contains(line, fp.Pattern) {
				defects = append(defects, Defect{
					Kind:        DefectForbiddenPattern,
					Location:    fmt.Sprintf("line %d", i+1),
					Description: fmt.Sprintf("%s: %s", fp.Pattern, fp.Reason),
				})
			}
		}
	}

	if reason := incompleteReason(source); reason != "" {
		defects = append(defects, Defect{
			Kind:        DefectSyntax,
			Description: reason,
		})
	}

	return defects
}

// requiredImport pairs the substring checked for with the full import line
// the mechanical fixer inserts when it is missing.
type requiredImport struct {
	Check string
	Fix   string
}

func requiredImports(framework Framework) []requiredImport {
	if framework == FrameworkSelenium {
		return []requiredImport{
			{Check: "import pytest", Fix: "import pytest"},
			{Check: "from selenium", Fix: "from selenium import webdriver"},
		}
	}
	return []requiredImport{
		{Check: "import pytest", Fix: "import pytest"},
		{Check: "from playwright.sync_api import", Fix: "from playwright.sync_api import Page, expect"},
	}
}

// applyMechanicalFixes resolves the defects that have a deterministic fix:
// missing imports are prepended and forbidden lines are dropped. Semantic
// defects (missing assertions, syntax damage) are left for the model.
func applyMechanicalFixes(source string, framework Framework, defects []Defect) string {
	var missingImports []string
	dropLines := map[int]bool{}

	for _, d := range defects {
		switch d.Kind {
		case DefectMissingImport:
			for _, imp := range requiredImports(framework) {
				if strings.Contains(d.Description, fmt.Sprintf("%q", imp.Check)) {
					missingImports = append(missingImports, imp.Fix)
				}
			}
		case DefectForbiddenPattern:
			var n int
			if _, err := fmt.Sscanf(d.Location, "line %d", &n); err == nil {
				dropLines[n] = true
			}
		}
	}

	if len(missingImports) == 0 && len(dropLines) == 0 {
		return source
	}

	lines := strings.Split(source, "\n")
	fixed := make([]string, 0, len(lines)+len(missingImports))
	fixed = append(fixed, missingImports...)
	for i, line := range lines {
		if dropLines[i+1] {
			continue
		}
		fixed = append(fixed, line)
	}

	return strings.Join(fixed, "\n")
}
