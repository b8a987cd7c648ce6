// Package openai implements the interpreter backend using OpenAI's APIs.
//
// It uses the Audio Transcription API (Whisper) for speech-to-text and the
// Chat Completions API with function calling for intent classification.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/interpreter/chatapi"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Interpreter uses OpenAI APIs for transcription and classification.
type Interpreter struct {
	apiKey             string
	baseURL            string
	transcriptionModel string
	completionModel    string
	client             *http.Client
	chat               *chatapi.Client
}

// New creates a new OpenAI interpreter from config.
func New(cfg config.OpenAIConfig, timeout time.Duration) *Interpreter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := &http.Client{Timeout: timeout}
	return &Interpreter{
		apiKey:             cfg.APIKey,
		baseURL:            base,
		transcriptionModel: cfg.TranscriptionModel,
		completionModel:    cfg.CompletionModel,
		client:             client,
		chat: &chatapi.Client{
			Provider:   "openai",
			Endpoint:   base + "/chat/completions",
			APIKey:     cfg.APIKey,
			HTTP:       client,
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
		},
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "openai" }

// ClassifyFunction asks the chat model to pick one of the functions.
func (i *Interpreter) ClassifyFunction(ctx context.Context, system, text string, functions []interpreter.FunctionSpec) (*interpreter.FunctionCall, error) {
	resp, err := i.chat.Do(ctx, chatapi.Request{
		Model: i.completionModel,
		Messages: []chatapi.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
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

	resp, err := i.chat.Do(ctx, chatapi.Request{
		Model:       i.completionModel,
		Messages:    messages,
		Temperature: chatapi.Temperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completing: %w", err)
	}
	return chatapi.Content(resp), nil
}

// Transcribe sends audio to the OpenAI Transcription API.
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio"+extFromContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	model := i.transcriptionModel
	if opts.Model != "" {
		model = opts.Model
	}
	_ = writer.WriteField("model", model)
	if opts.Language != "" {
		_ = writer.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		_ = writer.WriteField("prompt", opts.Prompt)
	}
	_ = writer.WriteField("response_format", "verbose_json")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+i.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, &interpreter.Error{Provider: "openai", Code: "network_error", Message: err.Error(), Err: err, Retry: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &interpreter.Error{
			Provider: "openai",
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  "transcription failed: " + string(respBody),
			Retry:    resp.StatusCode >= 500,
		}
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	// OpenAI returns full language names ("english"); normalise to ISO-639-1.
	lang := normalizeLanguage(result.Language)

	slog.Debug("transcription complete", "text_length", len(result.Text), "language", lang)
	return &interpreter.TranscribeResult{Text: result.Text, Language: lang}, nil
}

// Close is a no-op for the OpenAI interpreter.
func (i *Interpreter) Close() error { return nil }

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"):
		return ".m4a"
	default:
		return ".wav"
	}
}

var languageCodes = map[string]string{
	"english":    "en",
	"french":     "fr",
	"spanish":    "es",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"chinese":    "zh",
}

// normalizeLanguage converts full language names to ISO-639-1 codes.
func normalizeLanguage(lang string) string {
	if len(lang) == 2 {
		return strings.ToLower(lang)
	}
	if code, ok := languageCodes[strings.ToLower(lang)]; ok {
		return code
	}
	return strings.ToLower(lang)
}
