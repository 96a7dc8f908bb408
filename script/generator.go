package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kestrel-qa/testpilot/llm"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/plan"
)

// Generator converts a plan into a candidate test artifact. It either
// produces a syntactically complete artifact or fails explicitly with
// ErrGenerationFailed; it never silently emits truncated code. The generator
// has no side effects beyond constructing the Artifact value.
type Generator struct {
	client    llm.Client
	framework Framework
	logger    logger.Logger
}

// NewGenerator creates a generator targeting the given framework.
func NewGenerator(client llm.Client, framework Framework, log logger.Logger) *Generator {
	return &Generator{
		client:    client,
		framework: framework,
		logger:    log,
	}
}

// Generate produces the first-attempt artifact for a plan.
func (g *Generator) Generate(ctx context.Context, objective plan.Objective, p *plan.Plan) (*Artifact, error) {
	prompt, err := BuildGenerationPrompt(objective, p, g.framework)
	if err != nil {
		return nil, err
	}

	source, err := g.client.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if reason := incompleteReason(source); reason != "" {
		g.logger.Error(ctx, "generated script is incomplete", map[string]interface{}{
			"reason": reason,
		})
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, reason)
	}

	a := NewArtifact(g.framework, source)

	g.logger.Info(ctx, "script generated", map[string]interface{}{
		"artifact_id": a.ID.String(),
		"framework":   string(a.Framework),
		"attempt":     a.Attempt,
		"bytes":       len(a.Source),
	})

	return a, nil
}

// incompleteReason reports why a source looks empty or truncated; it returns
// an empty string for a complete source. These are cheap structural
// heuristics, not a full parse: full parseability is the validator's job.
func incompleteReason(source string) string {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return "empty output"
	}

	if strings.Count(trimmed, `"""`)%2 != 0 || strings.Count(trimmed, "'''")%2 != 0 {
		return "unterminated triple-quoted string"
	}

	lines := strings.Split(trimmed, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if strings.HasSuffix(last, "\\") {
		return "output ends with a line continuation"
	}
	if strings.HasSuffix(last, ":") || strings.HasSuffix(last, ",") {
		return "output ends mid-statement"
	}

	return ""
}
