package local

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter"
)

var volumeFn = []interpreter.FunctionSpec{{Name: "adjust_volume", Parameters: map[string]any{"type": "object"}}}

func TestClassifyOpenAICompatible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"tool_calls":[{"type":"function","function":{"name":"adjust_volume","arguments":"{\"level\":30}"}}]}}]}`)
	}))
	defer srv.Close()

	interp := New(config.LocalConfig{LLMEndpoint: srv.URL + "/v1/chat/completions", LLMModel: "llama3.1"}, time.Second)
	call, err := interp.ClassifyFunction(context.Background(), "sys", "volume 30", volumeFn)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.EqualValues(t, 30, call.Arguments["level"])
}

func TestClassifyOllamaNative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["stream"])
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"adjust_volume","arguments":{"level":55}}}]}}`)
	}))
	defer srv.Close()

	interp := New(config.LocalConfig{LLMEndpoint: srv.URL + "/api/chat"}, time.Second)
	assert.True(t, interp.native)

	call, err := interp.ClassifyFunction(context.Background(), "sys", "volume 55", volumeFn)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, "adjust_volume", call.Name)
	assert.EqualValues(t, 55, call.Arguments["level"])
}

func TestCompleteTextOllamaNative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Options struct {
				Temperature float64 `json:"temperature"`
				NumPredict  int     `json:"num_predict"`
			} `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 0.7, body.Options.Temperature, 1e-9)
		assert.Equal(t, 150, body.Options.NumPredict)
		_, _ = io.WriteString(w, `{"message":{"content":" Hi! "}}`)
	}))
	defer srv.Close()

	interp := New(config.LocalConfig{LLMEndpoint: srv.URL + "/api/chat"}, time.Second)
	out, err := interp.CompleteText(context.Background(), interpreter.CompletionRequest{User: "hello", Temperature: 0.7, MaxTokens: 150})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", out)
}

func TestTranscribeASR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "transcribe", r.URL.Query().Get("task"))
		assert.Equal(t, "fr", r.URL.Query().Get("language"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("audio_file")
		require.NoError(t, err)
		_, _ = io.WriteString(w, `{"text":"bonjour","language":"fr"}`)
	}))
	defer srv.Close()

	interp := New(config.LocalConfig{WhisperEndpoint: srv.URL + "/asr", WhisperType: "asr", Language: "fr"}, time.Second)
	res, err := interp.Transcribe(context.Background(), []byte("x"), "audio/wav", interpreter.TranscribeOpts{})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", res.Text)
}

func TestTranscribeOpenAICompatibleFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	interp := New(config.LocalConfig{WhisperEndpoint: srv.URL}, time.Second)
	_, err := interp.Transcribe(context.Background(), []byte("x"), "audio/wav", interpreter.TranscribeOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}
