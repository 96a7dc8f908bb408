package plan

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/kestrel-qa/testpilot/llm"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)

// ParseResponse converts a raw model response into a validated Plan. This is
// the single typed-parsing boundary for the planning stage: every malformed
// response surfaces here as ErrPlanningFailed.
func ParseResponse(raw string) (*Plan, error) {
	cleaned := cleanResponse(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrPlanningFailed)
	}

	var steps []Step
	if err := json.Unmarshal([]byte(cleaned), &steps); err != nil {
		return nil, fmt.Errorf("%w: unparsable response: %v", ErrPlanningFailed, err)
	}

	p := &Plan{Steps: steps}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanningFailed, err)
	}

	return p, nil
}

// cleanResponse prepares a model response for JSON parsing: strips markdown
// fences, removes trailing commas, and extracts the first complete JSON
// array when the model wrapped it in prose.
func cleanResponse(raw string) string {
	raw = llm.StripFences(raw)
	raw = trailingCommaRe.ReplaceAllString(raw, "$1")

	start := -1
	depth := 0
	for i, ch := range raw {
		switch ch {
		case '[':
			if start == -1 {
				start = i
			}
			depth++
		case ']':
			if start != -1 {
				depth--
				if depth == 0 {
					return raw[start : i+1]
				}
			}
		}
	}

	return raw
}
