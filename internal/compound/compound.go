// Package compound parses two-part commands such as
// "open Safari and type what time is it in Ottawa".
package compound

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/nagato/internal/heuristics"
	"github.com/nadzzz/nagato/internal/interpreter"
)

const (
	temperature = 0.3
	maxTokens   = 100
)

// SystemPrompt asks the model for "application_name|text_to_type".
const SystemPrompt = `You need to extract two pieces of information from a compound command:
1. The application name (after "open" or "launch")
2. The text to type or search (after "type", "search", "look up" or similar keywords)

Respond with only these two items in the format:
application_name|text_to_type

For example:
Input: "open Safari and type what time is it in Ottawa"
Output: "Safari|what time is it in Ottawa"

Input: "launch Chrome and search for best restaurants in NYC"
Output: "Chrome|best restaurants in NYC"`

// Result is the application to open and the text to type into it.
type Result struct {
	ApplicationName string `json:"application_name"`
	TextToType      string `json:"text_to_type"`
}

// Parser extracts compound commands with the help of an LLM.
type Parser struct {
	llm     interpreter.LLM
	timeout time.Duration
}

// NewParser creates a parser backed by llm.
func NewParser(llm interpreter.LLM, timeout time.Duration) *Parser {
	return &Parser{llm: llm, timeout: timeout}
}

// Matches is the lexical pre-filter. Only matching text is sent to the model.
func Matches(text string) bool {
	return heuristics.IsCompound(text)
}

// TryParse returns the parsed command, or false when the text is not a
// compound command or the model's answer cannot be split.
func (p *Parser) TryParse(ctx context.Context, text string) (Result, bool) {
	if !Matches(text) {
		return Result{}, false
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	out, err := p.llm.CompleteText(ctx, interpreter.CompletionRequest{
		System:      SystemPrompt,
		User:        text,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		slog.Warn("compound extraction failed", "error", err)
		return Result{}, false
	}

	res, ok := ParseReply(out)
	if !ok {
		slog.Debug("compound reply not in app|text form", "reply", out)
	}
	return res, ok
}

// ParseReply splits a model reply of the form "application|text". Quotes
// around the reply are tolerated since the prompt's examples show them.
func ParseReply(reply string) (Result, bool) {
	reply = strings.Trim(strings.TrimSpace(reply), `"'`)
	app, text, found := strings.Cut(reply, "|")
	if !found {
		return Result{}, false
	}
	res := Result{ApplicationName: strings.TrimSpace(app), TextToType: strings.TrimSpace(text)}
	if res.ApplicationName == "" || res.TextToType == "" {
		return Result{}, false
	}
	return res, true
}
