// Package gemini implements the interpreter backend on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter"
)

const transcribePrompt = "Transcribe this audio recording verbatim. Reply with the transcript only."

// Interpreter classifies and transcribes through the GenAI SDK.
type Interpreter struct {
	client *genai.Client
	model  string
}

// Option customizes client construction.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) { c.HTTPOptions.BaseURL = url }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *genai.ClientConfig) { c.HTTPClient = hc }
}

// New creates a Gemini interpreter from config.
func New(ctx context.Context, cfg config.GeminiConfig, opts ...Option) (*Interpreter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Interpreter{client: client, model: model}, nil
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "gemini" }

// ClassifyFunction asks Gemini to pick one of the functions.
func (i *Interpreter) ClassifyFunction(ctx context.Context, system, text string, functions []interpreter.FunctionSpec) (*interpreter.FunctionCall, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(functions))
	for _, fn := range functions {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  ToSchema(fn.Parameters),
		})
	}

	resp, err := i.client.Models.GenerateContent(ctx, i.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Tools:             []*genai.Tool{{FunctionDeclarations: decls}},
	})
	if err != nil {
		return nil, wrapError(err)
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return nil, nil
	}
	args := calls[0].Args
	if args == nil {
		args = map[string]any{}
	}
	slog.Debug("model chose function", "backend", i.Name(), "function", calls[0].Name)
	return &interpreter.FunctionCall{Name: calls[0].Name, Arguments: args}, nil
}

// CompleteText returns a plain completion.
func (i *Interpreter) CompleteText(ctx context.Context, req interpreter.CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := i.client.Models.GenerateContent(ctx, i.model, genai.Text(req.User), cfg)
	if err != nil {
		return "", wrapError(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Transcribe sends the recording inline and asks for a verbatim transcript.
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	if contentType == "" {
		contentType = "audio/wav"
	}
	prompt := transcribePrompt
	if opts.Prompt != "" {
		prompt += " Context: " + opts.Prompt
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(audio, contentType),
		}, genai.RoleUser),
	}

	model := i.model
	if opts.Model != "" {
		model = opts.Model
	}
	resp, err := i.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return nil, wrapError(err)
	}
	return &interpreter.TranscribeResult{Text: strings.TrimSpace(resp.Text()), Language: opts.Language}, nil
}

// Close is a no-op; the SDK client holds no persistent connections of its own.
func (i *Interpreter) Close() error { return nil }

func wrapError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr):
		apiErr = *apiErrPtr
	default:
		return &interpreter.Error{Provider: "gemini", Code: "request_error", Message: err.Error(), Err: err, Retry: true}
	}
	return &interpreter.Error{
		Provider: "gemini",
		Code:     fmt.Sprintf("http_%d", apiErr.Code),
		Message:  apiErr.Message,
		Retry:    apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500,
		Err:      err,
	}
}

// ToSchema converts a JSON Schema object into the SDK's schema type. Only
// the keywords the function catalogue uses are mapped.
func ToSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = ToSchema(sub)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if enum, ok := m["enum"].([]string); ok {
		s.Enum = enum
	}
	if v, ok := number(m["minimum"]); ok {
		s.Minimum = genai.Ptr(v)
	}
	if v, ok := number(m["maximum"]); ok {
		s.Maximum = genai.Ptr(v)
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = ToSchema(items)
	}
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
