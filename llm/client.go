package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyResponse is returned when the model produces no usable text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrTimeout is returned when a model call exceeds its deadline.
	ErrTimeout = errors.New("model call timed out")
)

// Client is the text-in/text-out boundary to the language-model collaborator.
// Implementations must honor context cancellation and deadlines, and must map
// deadline expiry to ErrTimeout so callers can classify the failure.
type Client interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// wrapTimeout converts a context deadline error into ErrTimeout, keeping the
// original error text for diagnostics.
func wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// StripFences removes a leading/trailing markdown code fence from a model
// response. Models often wrap output in ```python blocks despite prompt
// instructions to return bare code.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// Drop the opening fence line (```python, ```json, or bare ```).
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
