package breaker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter"
)

type flakyBackend struct {
	err   error
	calls int
}

func (f *flakyBackend) Name() string { return "flaky" }
func (f *flakyBackend) Close() error { return nil }

func (f *flakyBackend) ClassifyFunction(context.Context, string, string, []interpreter.FunctionSpec) (*interpreter.FunctionCall, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &interpreter.FunctionCall{Name: "take_screenshot", Arguments: map[string]any{}}, nil
}

func (f *flakyBackend) CompleteText(context.Context, interpreter.CompletionRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "hi", nil
}

func (f *flakyBackend) Transcribe(context.Context, []byte, string, interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	return &interpreter.TranscribeResult{Text: "ok"}, nil
}

func testConfig() config.BreakerConfig {
	return config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, FailureThreshold: 2}
}

func TestBreakerPassesThrough(t *testing.T) {
	inner := &flakyBackend{}
	b := Wrap(inner, testConfig())

	call, err := b.ClassifyFunction(context.Background(), "", "screenshot", nil)
	require.NoError(t, err)
	assert.Equal(t, "take_screenshot", call.Name)

	text, err := b.CompleteText(context.Background(), interpreter.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyBackend{err: errors.New("boom")}
	b := Wrap(inner, testConfig())

	for range 2 {
		_, err := b.CompleteText(context.Background(), interpreter.CompletionRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.ClassifyFunction(context.Background(), "", "x", nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	inner := &flakyBackend{err: context.Canceled}
	b := Wrap(inner, testConfig())

	for range 3 {
		_, _ = b.CompleteText(context.Background(), interpreter.CompletionRequest{})
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreakerIgnoresWrappedCancellation(t *testing.T) {
	inner := &flakyBackend{err: &interpreter.Error{
		Provider: "openai",
		Code:     "network_error",
		Message:  "context canceled",
		Err:      fmt.Errorf("post: %w", context.Canceled),
	}}
	b := Wrap(inner, testConfig())

	for range 3 {
		_, _ = b.ClassifyFunction(context.Background(), "", "x", nil)
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerTranscribeBypasses(t *testing.T) {
	b := Wrap(&flakyBackend{}, testConfig())
	res, err := b.Transcribe(context.Background(), nil, "", interpreter.TranscribeOpts{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}
