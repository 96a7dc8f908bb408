package llm

import (
	"context"
	"sync"
)

// StubClient is a scripted Client implementation for tests. Each call to
// Complete consumes the next queued response; the last response repeats once
// the queue is drained.
type StubClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

// NewStubClient creates a stub that replays the given responses in order.
func NewStubClient(responses ...string) *StubClient {
	return &StubClient{responses: responses}
}

// QueueError makes the next call return err instead of a response.
func (s *StubClient) QueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Complete returns the next scripted response or error.
func (s *StubClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapTimeout(ctx, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}

	if len(s.responses) == 0 {
		return "", ErrEmptyResponse
	}

	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx], nil
}

// Calls returns how many times Complete was invoked.
func (s *StubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Prompts returns a copy of the prompts received so far.
func (s *StubClient) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}
