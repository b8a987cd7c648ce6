// Package local implements the interpreter backend using self-hosted models.
//
// It supports any Whisper-compatible transcription endpoint (whisper.cpp
// server, faster-whisper, whisper-asr-webservice) and either an
// OpenAI-compatible chat endpoint (Ollama /v1, vLLM, llama.cpp server) or
// Ollama's native /api/chat.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/interpreter/chatapi"
)

// Interpreter uses self-hosted models for transcription and classification.
type Interpreter struct {
	whisperEndpoint string
	whisperType     string // "openai" or "asr"
	llmEndpoint     string
	llmModel        string
	defaultLanguage string
	native          bool // llmEndpoint is Ollama's /api/chat
	client          *http.Client
	chat            *chatapi.Client
}

// New creates a new local interpreter from config.
func New(cfg config.LocalConfig, timeout time.Duration) *Interpreter {
	wt := cfg.WhisperType
	if wt == "" {
		wt = "openai"
	}
	model := cfg.LLMModel
	if model == "" {
		model = "llama3.1"
	}
	client := &http.Client{Timeout: timeout}
	return &Interpreter{
		whisperEndpoint: cfg.WhisperEndpoint,
		whisperType:     wt,
		llmEndpoint:     cfg.LLMEndpoint,
		llmModel:        model,
		defaultLanguage: cfg.Language,
		native:          strings.HasSuffix(strings.TrimRight(cfg.LLMEndpoint, "/"), "/api/chat"),
		client:          client,
		chat: &chatapi.Client{
			Provider:   "local",
			Endpoint:   cfg.LLMEndpoint,
			HTTP:       client,
			MaxRetries: 1,
			RetryDelay: 250 * time.Millisecond,
		},
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "local" }

// ClassifyFunction asks the local model to pick one of the functions.
func (i *Interpreter) ClassifyFunction(ctx context.Context, system, text string, functions []interpreter.FunctionSpec) (*interpreter.FunctionCall, error) {
	messages := []chatapi.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: text},
	}
	if i.native {
		resp, err := i.ollamaChat(ctx, ollamaRequest{
			Model:    i.llmModel,
			Messages: messages,
			Tools:    chatapi.Tools(functions),
		})
		if err != nil {
			return nil, err
		}
		return resp.firstCall(), nil
	}

	resp, err := i.chat.Do(ctx, chatapi.Request{
		Model:      i.llmModel,
		Messages:   messages,
		Tools:      chatapi.Tools(functions),
		ToolChoice: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("classifying: %w", err)
	}
	call, err := chatapi.FirstCall(resp)
	if err != nil {
		return nil, err
	}
	if call != nil {
		slog.Debug("model chose function", "backend", i.Name(), "function", call.Name)
	}
	return call, nil
}

// CompleteText returns a plain chat completion.
func (i *Interpreter) CompleteText(ctx context.Context, req interpreter.CompletionRequest) (string, error) {
	messages := make([]chatapi.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, chatapi.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, chatapi.Message{Role: "user", Content: req.User})

	if i.native {
		resp, err := i.ollamaChat(ctx, ollamaRequest{
			Model:    i.llmModel,
			Messages: messages,
			Options:  &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Message.Content), nil
	}

	resp, err := i.chat.Do(ctx, chatapi.Request{
		Model:       i.llmModel,
		Messages:    messages,
		Temperature: chatapi.Temperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completing: %w", err)
	}
	return chatapi.Content(resp), nil
}

// Close is a no-op for the local interpreter.
func (i *Interpreter) Close() error { return nil }

type ollamaRequest struct {
	Model    string            `json:"model"`
	Messages []chatapi.Message `json:"messages"`
	Tools    []chatapi.Tool    `json:"tools,omitempty"`
	Options  *ollamaOptions    `json:"options,omitempty"`
	Stream   bool              `json:"stream"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content   string `json:"content"`
		ToolCalls []struct {
			Function struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"message"`
	Error string `json:"error"`
}

func (r *ollamaResponse) firstCall() *interpreter.FunctionCall {
	for _, tc := range r.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		return &interpreter.FunctionCall{Name: tc.Function.Name, Arguments: args}
	}
	return nil
}

// ollamaChat posts to Ollama's native /api/chat endpoint.
func (i *Interpreter) ollamaChat(ctx context.Context, body ollamaRequest) (*ollamaResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.llmEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, &interpreter.Error{Provider: "local", Code: "network_error", Message: err.Error(), Err: err, Retry: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading LLM response: %w", err)
	}
	var out ollamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &interpreter.Error{Provider: "local", Code: "unmarshal_error", Message: err.Error(), Err: err}
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, &interpreter.Error{
			Provider: "local",
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  out.Error,
			Retry:    resp.StatusCode >= 500,
		}
	}
	return &out, nil
}

// Transcribe sends audio to the local Whisper-compatible endpoint.
// Supports two flavors:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	lang := opts.Language
	if lang == "" {
		lang = i.defaultLanguage
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	field := "file"
	if i.whisperType == "asr" {
		field = "audio_file"
	}
	part, err := writer.CreateFormFile(field, "audio"+extFromContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	endpoint := i.whisperEndpoint
	if i.whisperType == "asr" {
		q := make(url.Values)
		q.Set("task", "transcribe")
		q.Set("output", "json")
		q.Set("encode", "true")
		if lang != "" {
			q.Set("language", lang)
		}
		if opts.Prompt != "" {
			q.Set("initial_prompt", opts.Prompt)
		}
		endpoint += "?" + q.Encode()
	} else {
		if opts.Model != "" {
			_ = writer.WriteField("model", opts.Model)
		}
		if lang != "" {
			_ = writer.WriteField("language", lang)
		}
		_ = writer.WriteField("response_format", "verbose_json")
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("local transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("local transcription complete", "type", i.whisperType, "text_length", len(result.Text), "language", result.Language)
	return &interpreter.TranscribeResult{Text: result.Text, Language: result.Language}, nil
}

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	default:
		return ".wav"
	}
}
