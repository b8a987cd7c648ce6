package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/interpreter"
)

func TestFirstCallFromToolCalls(t *testing.T) {
	var resp Response
	raw := `{"choices":[{"message":{"content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"adjust_volume","arguments":"{\"level\": 70}"}}]}}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	call, err := FirstCall(&resp)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, "adjust_volume", call.Name)
	assert.EqualValues(t, 70, call.Arguments["level"])
}

func TestFirstCallLegacyFunctionCall(t *testing.T) {
	var resp Response
	raw := `{"choices":[{"message":{"function_call":{"name":"take_screenshot","arguments":""}}}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	call, err := FirstCall(&resp)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, "take_screenshot", call.Name)
	assert.Empty(t, call.Arguments)
}

func TestFirstCallPlainText(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"choices":[{"message":{"content":"hello"}}]}`), &resp))

	call, err := FirstCall(&resp)
	require.NoError(t, err)
	assert.Nil(t, call)
	assert.Equal(t, "hello", Content(&resp))
}

func TestFirstCallMalformedArguments(t *testing.T) {
	var resp Response
	raw := `{"choices":[{"message":{"tool_calls":[{"type":"function","function":{"name":"type_text","arguments":"{oops"}}]}}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	_, err := FirstCall(&resp)
	assert.Error(t, err)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := &Client{Provider: "test", Endpoint: srv.URL, APIKey: "k", MaxRetries: 2, RetryDelay: time.Millisecond}
	resp, err := c.Do(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", Content(resp))
	assert.EqualValues(t, 2, calls.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := &Client{Provider: "test", Endpoint: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond}
	_, err := c.Do(context.Background(), Request{Model: "m"})
	require.Error(t, err)

	var pe *interpreter.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invalid_request_error", pe.Code)
	assert.False(t, pe.Retry)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDoKeepsCancellationCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Client{Provider: "test", Endpoint: srv.URL, MaxRetries: 2, RetryDelay: time.Millisecond}
	_, err := c.Do(ctx, Request{Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var pe *interpreter.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "network_error", pe.Code)
	assert.False(t, pe.Retry)
}
