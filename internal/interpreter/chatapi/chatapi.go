// Package chatapi implements the OpenAI-compatible chat completions wire
// format shared by the OpenAI and local (Ollama, vLLM, llama.cpp) backends.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/nagato/internal/interpreter"
)

// Request is the body of POST /chat/completions.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool wraps a function definition.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function is the schema of a callable function.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Response is the body returned by /chat/completions.
type Response struct {
	Choices []struct {
		Message struct {
			Content      string     `json:"content"`
			ToolCalls    []ToolCall `json:"tool_calls"`
			FunctionCall *CallBody  `json:"function_call"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function CallBody `json:"function"`
}

// CallBody carries the function name and JSON-encoded arguments.
type CallBody struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Client posts chat requests to one endpoint.
type Client struct {
	Provider   string
	Endpoint   string // full URL of the chat completions endpoint
	APIKey     string
	HTTP       *http.Client
	MaxRetries int
	RetryDelay time.Duration
}

// Tools converts function specs into the tools array.
func Tools(functions []interpreter.FunctionSpec) []Tool {
	tools := make([]Tool, 0, len(functions))
	for _, fn := range functions {
		tools = append(tools, Tool{
			Type: "function",
			Function: Function{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			},
		})
	}
	return tools
}

// Temperature returns a pointer for the optional temperature field.
func Temperature(t float64) *float64 { return &t }

// Do sends the request, retrying network errors, 429 and 5xx responses.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &interpreter.Error{Provider: c.Provider, Code: "marshal_error", Message: err.Error(), Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.RetryDelay * time.Duration(attempt)):
			}
			slog.Debug("retrying chat request", "provider", c.Provider, "attempt", attempt)
		}

		resp, err := c.post(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !interpreter.Retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed after %d retries: %w", c.MaxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &interpreter.Error{Provider: c.Provider, Code: "request_error", Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, &interpreter.Error{Provider: c.Provider, Code: "network_error", Message: err.Error(), Err: err, Retry: ctx.Err() == nil}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, &interpreter.Error{Provider: c.Provider, Code: "read_error", Message: err.Error(), Err: err, Retry: true}
	}

	if httpResp.StatusCode != http.StatusOK {
		retry := httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests
		var parsed Response
		if json.Unmarshal(data, &parsed) == nil && parsed.Error != nil {
			return nil, &interpreter.Error{Provider: c.Provider, Code: parsed.Error.Type, Message: parsed.Error.Message, Retry: retry}
		}
		return nil, &interpreter.Error{
			Provider: c.Provider,
			Code:     fmt.Sprintf("http_%d", httpResp.StatusCode),
			Message:  truncate(string(data), 512),
			Retry:    retry,
		}
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &interpreter.Error{Provider: c.Provider, Code: "unmarshal_error", Message: err.Error(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &interpreter.Error{Provider: c.Provider, Code: "no_choices", Message: "API returned no choices"}
	}
	return &resp, nil
}

// FirstCall extracts the first function call from a response. It returns
// nil when the model answered with plain text.
func FirstCall(resp *Response) (*interpreter.FunctionCall, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, nil
	}
	msg := resp.Choices[0].Message

	var body *CallBody
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].Type == "" || msg.ToolCalls[i].Type == "function" {
			body = &msg.ToolCalls[i].Function
			break
		}
	}
	if body == nil && msg.FunctionCall != nil && msg.FunctionCall.Name != "" {
		body = msg.FunctionCall
	}
	if body == nil {
		return nil, nil
	}

	args := map[string]any{}
	if strings.TrimSpace(body.Arguments) != "" {
		if err := json.Unmarshal([]byte(body.Arguments), &args); err != nil {
			return nil, fmt.Errorf("decoding arguments for %s: %w", body.Name, err)
		}
	}
	return &interpreter.FunctionCall{Name: body.Name, Arguments: args}, nil
}

// Content returns the trimmed text of the first choice.
func Content(resp *Response) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
