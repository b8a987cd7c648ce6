// Package interpreter defines the interfaces for the language-model and
// speech-recognition backends used by the command pipeline.
//
// Nagato ships with three backends: OpenAI (cloud), Local (self-hosted via
// Ollama/whisper.cpp) and Gemini (Google GenAI). All of them speak the same
// function-calling contract: the caller supplies a catalogue of functions and
// the backend reports which one, if any, the model chose.
package interpreter

import (
	"context"
	"errors"
	"fmt"
)

// FunctionSpec describes one function the model may call.
type FunctionSpec struct {
	// Name is the function identifier (e.g., "open_application").
	Name string `json:"name"`

	// Description tells the model when to pick this function.
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any `json:"parameters"`
}

// FunctionCall is the model's choice of function and its decoded arguments.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CompletionRequest is a plain text completion with a system prompt.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// TranscribeOpts controls transcription behavior.
type TranscribeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string

	// Model overrides the default transcription model.
	Model string
}

// TranscribeResult holds the output of audio transcription.
type TranscribeResult struct {
	Text     string
	Language string
}

// LLM is the language-model capability the pipeline depends on.
type LLM interface {
	// Name returns the backend identifier (e.g., "openai", "local", "gemini").
	Name() string

	// ClassifyFunction asks the model to map text onto one of the functions.
	// A nil FunctionCall with a nil error means the model chose no function.
	ClassifyFunction(ctx context.Context, system, text string, functions []FunctionSpec) (*FunctionCall, error)

	// CompleteText returns a free-form completion.
	CompleteText(ctx context.Context, req CompletionRequest) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string, opts TranscribeOpts) (*TranscribeResult, error)
}

// Backend is implemented by interpreters that provide both capabilities.
type Backend interface {
	LLM
	Transcriber
}

// Error is a provider error with a retry hint.
type Error struct {
	Provider string
	Code     string
	Message  string
	Retry    bool
	// Err is the underlying transport or decode error, if any.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether err is a provider error worth retrying.
func Retryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retry
	}
	return false
}
