package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFallback = "Thank you for reaching out! 😊"

type fakeCompleter struct {
	mu      sync.Mutex
	calls   []string
	prompts []string
	respond func(model string) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.respond(model)
}

func newTestGenerator(c Completer, models ...string) *ReplyGenerator {
	return NewReplyGenerator(c, GeneratorConfig{
		BusinessName:  "Rumo Restaurant",
		FallbackReply: testFallback,
		Models:        models,
		Timeout:       100 * time.Millisecond,
	}, nil)
}

func TestGenerate_Success(t *testing.T) {
	fc := &fakeCompleter{respond: func(string) (string, error) {
		return "Yes, we offer vegan options every day!", nil
	}}
	g := newTestGenerator(fc, "primary")

	reply := g.Generate(context.Background(), "Do you have vegan options?", "We offer vegan and gluten-free options daily.")

	assert.False(t, reply.Fallback)
	assert.Equal(t, "primary", reply.Model)
	assert.Equal(t, "Yes, we offer vegan options every day!", reply.Text)
	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0], "Do you have vegan options?")
	assert.Contains(t, fc.prompts[0], "We offer vegan and gluten-free options daily.")
	assert.Contains(t, fc.prompts[0], "EXACTLY ONE sentence")
}

func TestGenerate_AlternateModel(t *testing.T) {
	fc := &fakeCompleter{respond: func(model string) (string, error) {
		if model == "primary" {
			return "", &StatusError{StatusCode: 429, Message: "rate limited"}
		}
		return "Happy to help!", nil
	}}
	g := newTestGenerator(fc, "primary", "alternate", "never-used")

	reply := g.Generate(context.Background(), "hi", "ctx")

	assert.False(t, reply.Fallback)
	assert.Equal(t, "alternate", reply.Model)
	assert.Equal(t, []string{"primary", "alternate"}, fc.calls)
}

func TestGenerate_FallbackAfterBothFail(t *testing.T) {
	fc := &fakeCompleter{respond: func(string) (string, error) {
		return "", errors.New("boom")
	}}
	g := newTestGenerator(fc, "primary", "alternate")

	reply := g.Generate(context.Background(), "hi", "ctx")

	assert.True(t, reply.Fallback)
	assert.Equal(t, testFallback, reply.Text)
	assert.Error(t, reply.Err)
	assert.Len(t, fc.calls, 2, "no retries beyond the single alternate")
}

func TestGenerate_MissingKeySkipsAlternate(t *testing.T) {
	fc := &fakeCompleter{respond: func(string) (string, error) {
		return "", ErrMissingAPIKey
	}}
	g := newTestGenerator(fc, "primary", "alternate")

	reply := g.Generate(context.Background(), "hi", "ctx")

	assert.True(t, reply.Fallback)
	assert.ErrorIs(t, reply.Err, ErrMissingAPIKey)
	assert.Len(t, fc.calls, 1)
}

func TestGenerate_Timeout(t *testing.T) {
	slow := CompleterFunc(func(ctx context.Context, model, prompt string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	})
	g := newTestGenerator(slow, "primary")

	start := time.Now()
	reply := g.Generate(context.Background(), "hi", "ctx")

	assert.True(t, reply.Fallback)
	assert.Equal(t, testFallback, reply.Text)
	assert.ErrorIs(t, reply.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestGenerate_NoCompleter(t *testing.T) {
	g := newTestGenerator(nil, "primary")
	reply := g.Generate(context.Background(), "hi", "ctx")
	assert.True(t, reply.Fallback)
	assert.Equal(t, testFallback, reply.Text)
}

func TestGenerate_OpenBreakerReturnsFallback(t *testing.T) {
	fc := &fakeCompleter{respond: func(string) (string, error) {
		return "", errors.New("upstream down")
	}}
	g := newTestGenerator(fc, "primary")

	for i := 0; i < 3; i++ {
		g.Generate(context.Background(), "hi", "ctx")
	}
	require.Equal(t, "open", g.BreakerState())

	calls := len(fc.calls)
	reply := g.Generate(context.Background(), "hi", "ctx")
	assert.True(t, reply.Fallback)
	assert.Equal(t, calls, len(fc.calls), "open breaker must not reach the model")
}

func TestBuildReplyPrompt(t *testing.T) {
	p := BuildReplyPrompt("", `He said "hi"`, "ctx")
	assert.Contains(t, p, "our business")
	assert.Contains(t, p, `"He said \"hi\""`)
}
