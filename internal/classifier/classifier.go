// Package classifier maps free-form command text onto one of the five
// intents by asking an LLM to choose from a fixed function catalogue.
//
// Classification never fails: an unreachable model, an unknown function or
// arguments that do not decode all degrade to the Conversation intent.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/nadzzz/nagato/internal/heuristics"
	"github.com/nadzzz/nagato/internal/intent"
	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/metrics"
)

// Function names in the catalogue.
const (
	FuncOpenApplication = "open_application"
	FuncAdjustVolume    = "adjust_volume"
	FuncTakeScreenshot  = "take_screenshot"
	FuncTypeText        = "type_text"
)

// SystemPrompt steers the model's function choice.
const SystemPrompt = `You are a command parser for a computer control system.
Analyze user commands and map them to the appropriate function call.
For volume commands, understand relative terms (louder/quieter) and convert them to appropriate levels.

For typing commands:
- If a command mentions typing something or entering text, use the type_text function.
- If a command mentions searching or looking up info, use type_text with focus_browser=true.
- If a command contains search terms like "what", "how", "when", etc., use type_text with focus_browser=true.

For compound commands (e.g. "open <app> and type <text>"), only parse the first part of the command.
Respond only with the function call, no other text.`

// Catalogue returns the function specs offered to the model. Choosing none
// of them means conversation.
func Catalogue() []interpreter.FunctionSpec {
	return []interpreter.FunctionSpec{
		{
			Name:        FuncOpenApplication,
			Description: "Open an application on the computer",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"app_name": map[string]any{
						"type":        "string",
						"description": "Name of the application to open",
					},
				},
				"required": []string{"app_name"},
			},
		},
		{
			Name:        FuncAdjustVolume,
			Description: "Adjust the system volume",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"level": map[string]any{
						"type":        "integer",
						"description": "Volume level (0-100)",
						"minimum":     intent.MinVolume,
						"maximum":     intent.MaxVolume,
					},
				},
				"required": []string{"level"},
			},
		},
		{
			Name:        FuncTakeScreenshot,
			Description: "Take a screenshot of the screen",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filename": map[string]any{
						"type":        "string",
						"description": "Optional filename for the screenshot",
					},
				},
			},
		},
		{
			Name:        FuncTypeText,
			Description: "Type text into the current application",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "The text to type",
					},
					"delay": map[string]any{
						"type":        "number",
						"description": "Delay between keystrokes (seconds)",
						"default":     intent.DefaultTypeDelay,
					},
					"focus_browser": map[string]any{
						"type":        "boolean",
						"description": "Whether to focus the browser's address/search bar before typing",
						"default":     false,
					},
				},
				"required": []string{"text"},
			},
		},
	}
}

type openArgs struct {
	AppName string `mapstructure:"app_name"`
}

type volumeArgs struct {
	Level *float64 `mapstructure:"level"`
}

type screenshotArgs struct {
	Filename string `mapstructure:"filename"`
}

type typeArgs struct {
	Text         string  `mapstructure:"text"`
	Delay        float64 `mapstructure:"delay"`
	FocusBrowser bool    `mapstructure:"focus_browser"`
}

// Classifier turns text into an Intent.
type Classifier struct {
	llm     interpreter.LLM
	timeout time.Duration
	metrics *metrics.Metrics
}

// New creates a classifier. A zero timeout leaves the caller's deadline in charge.
func New(llm interpreter.LLM, timeout time.Duration, m *metrics.Metrics) *Classifier {
	return &Classifier{llm: llm, timeout: timeout, metrics: m}
}

// Classify asks the model which function the text calls for and converts
// the answer into an Intent. It never returns an error.
func (c *Classifier) Classify(ctx context.Context, text string) intent.Intent {
	if strings.TrimSpace(text) == "" {
		c.metrics.ObserveFallback("empty")
		return intent.Conversation()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	call, err := c.llm.ClassifyFunction(ctx, SystemPrompt, text, Catalogue())
	if err != nil {
		slog.Warn("classification failed, treating as conversation", "backend", c.llm.Name(), "error", err)
		c.metrics.ObserveFallback("llm_error")
		return intent.Conversation()
	}
	if call == nil {
		c.metrics.ObserveFallback("no_call")
		c.metrics.ObserveClassification(string(intent.KindConversation))
		return intent.Conversation()
	}

	in, err := FromCall(call, text)
	if err != nil {
		slog.Warn("discarding function call", "function", call.Name, "error", err)
		c.metrics.ObserveFallback("bad_arguments")
		return intent.Conversation()
	}

	slog.Debug("classified command", "intent", in.String())
	c.metrics.ObserveClassification(string(in.Kind()))
	return in
}

// FromCall converts a model function call into an Intent. text is the
// original command, used to force focus_browser for search-like phrasing.
func FromCall(call *interpreter.FunctionCall, text string) (intent.Intent, error) {
	switch call.Name {
	case FuncOpenApplication:
		var args openArgs
		if err := decode(call.Arguments, &args); err != nil {
			return intent.Intent{}, err
		}
		in := intent.OpenApp(args.AppName)
		return in, in.Validate()

	case FuncAdjustVolume:
		var args volumeArgs
		if err := decode(call.Arguments, &args); err != nil {
			return intent.Intent{}, err
		}
		if args.Level == nil {
			return intent.Intent{}, fmt.Errorf("%w: level", intent.ErrMissingParameter)
		}
		level := *args.Level
		if math.IsNaN(level) || math.IsInf(level, 0) {
			return intent.Intent{}, fmt.Errorf("%w: level %v is not a number", intent.ErrMissingParameter, level)
		}
		// Clamp before converting; out-of-range float to int is undefined.
		level = math.Max(intent.MinVolume, math.Min(intent.MaxVolume, math.Round(level)))
		return intent.Volume(int(level)), nil

	case FuncTakeScreenshot:
		var args screenshotArgs
		if err := decode(call.Arguments, &args); err != nil {
			return intent.Intent{}, err
		}
		return intent.Screenshot(args.Filename), nil

	case FuncTypeText:
		args := typeArgs{Delay: intent.DefaultTypeDelay}
		if err := decode(call.Arguments, &args); err != nil {
			return intent.Intent{}, err
		}
		in := intent.TypeText(args.Text, args.Delay, args.FocusBrowser)
		if heuristics.IsSearchLike(text) {
			in = in.WithFocusBrowser()
		}
		return in, in.Validate()
	}
	return intent.Intent{}, fmt.Errorf("unknown function %q", call.Name)
}

// decode maps loosely typed JSON arguments onto a typed struct. Numbers
// encoded as strings ("70") are accepted.
func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}
