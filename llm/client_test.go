package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare text untouched",
			in:   "def test_x():\n    assert True",
			want: "def test_x():\n    assert True",
		},
		{
			name: "python fence",
			in:   "```python\ndef test_x():\n    assert True\n```",
			want: "def test_x():\n    assert True",
		},
		{
			name: "json fence",
			in:   "```json\n[{\"step\": 1}]\n```",
			want: "[{\"step\": 1}]",
		},
		{
			name: "bare fence",
			in:   "```\nhello\n```",
			want: "hello",
		},
		{
			name: "surrounding whitespace",
			in:   "\n\n```python\nx = 1\n```\n\n",
			want: "x = 1",
		},
		{
			name: "fence with no newline",
			in:   "```",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestStubClient(t *testing.T) {
	ctx := context.Background()

	t.Run("replays responses in order, last repeats", func(t *testing.T) {
		c := NewStubClient("first", "second")

		for _, want := range []string{"first", "second", "second"} {
			got, err := c.Complete(ctx, "prompt")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		assert.Equal(t, 3, c.Calls())
	})

	t.Run("records prompts", func(t *testing.T) {
		c := NewStubClient("ok")
		c.Complete(ctx, "alpha")
		c.Complete(ctx, "beta")

		assert.Equal(t, []string{"alpha", "beta"}, c.Prompts())
	})

	t.Run("queued error consumed before responses", func(t *testing.T) {
		c := NewStubClient("ok")
		wantErr := errors.New("throttled")
		c.QueueError(wantErr)

		_, err := c.Complete(ctx, "prompt")
		assert.ErrorIs(t, err, wantErr)

		got, err := c.Complete(ctx, "prompt")
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})

	t.Run("empty queue yields empty response error", func(t *testing.T) {
		c := NewStubClient()
		_, err := c.Complete(ctx, "prompt")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("expired deadline maps to timeout", func(t *testing.T) {
		expired, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		c := NewStubClient("ok")
		_, err := c.Complete(expired, "prompt")
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("cancellation passes through unchanged", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		c := NewStubClient("ok")
		_, err := c.Complete(cancelled, "prompt")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
