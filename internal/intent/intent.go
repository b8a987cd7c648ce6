// Package intent defines the typed actions a command can be classified into.
//
// An Intent is a tagged variant: exactly one Kind is active, and the
// parameters for that kind are fixed at construction. Intents are value
// objects created per command and never shared across command cycles.
package intent

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies which intent variant is active.
type Kind string

const (
	// KindOpenApp launches (or focuses) a named application.
	KindOpenApp Kind = "open_app"

	// KindVolume sets the system output volume to a level in [0,100].
	KindVolume Kind = "volume"

	// KindScreenshot captures the screen, optionally to a named file.
	KindScreenshot Kind = "screenshot"

	// KindTypeText types text into the foreground application.
	KindTypeText Kind = "type_text"

	// KindConversation means no action applies; the assistant should just talk.
	KindConversation Kind = "conversation"
)

// DefaultTypeDelay is the pause between simulated keystrokes, in seconds.
const DefaultTypeDelay = 0.05

// MinVolume and MaxVolume bound every volume level that reaches an executor.
const (
	MinVolume = 0
	MaxVolume = 100
)

// ErrMissingParameter is returned by Validate when a required parameter is empty.
var ErrMissingParameter = errors.New("missing intent parameter")

// Intent is one classified command. The zero value is a Conversation intent.
type Intent struct {
	kind         Kind
	appName      string
	level        int
	filename     string
	text         string
	delay        float64
	focusBrowser bool
}

// OpenApp returns an intent to open the named application.
func OpenApp(appName string) Intent {
	return Intent{kind: KindOpenApp, appName: strings.TrimSpace(appName)}
}

// Volume returns an intent to set the volume. The level is clamped to [0,100].
func Volume(level int) Intent {
	return Intent{kind: KindVolume, level: ClampVolume(level)}
}

// Screenshot returns an intent to capture the screen. An empty filename lets
// the executor pick one.
func Screenshot(filename string) Intent {
	return Intent{kind: KindScreenshot, filename: strings.TrimSpace(filename)}
}

// TypeText returns an intent to type text. A non-positive delay falls back to
// DefaultTypeDelay.
func TypeText(text string, delay float64, focusBrowser bool) Intent {
	if delay <= 0 {
		delay = DefaultTypeDelay
	}
	return Intent{kind: KindTypeText, text: text, delay: delay, focusBrowser: focusBrowser}
}

// Conversation returns the fallback intent.
func Conversation() Intent {
	return Intent{kind: KindConversation}
}

// Kind returns the active variant.
func (i Intent) Kind() Kind {
	if i.kind == "" {
		return KindConversation
	}
	return i.kind
}

// AppName is set for KindOpenApp.
func (i Intent) AppName() string { return i.appName }

// Level is set for KindVolume and always within [0,100].
func (i Intent) Level() int { return i.level }

// Filename is optionally set for KindScreenshot.
func (i Intent) Filename() string { return i.filename }

// Text is set for KindTypeText.
func (i Intent) Text() string { return i.text }

// Delay is the per-keystroke delay for KindTypeText, in seconds.
func (i Intent) Delay() float64 { return i.delay }

// FocusBrowser reports whether typed text should go to the browser address bar.
func (i Intent) FocusBrowser() bool { return i.focusBrowser }

// WithFocusBrowser returns a copy of a TypeText intent with focus_browser forced on.
// Other kinds are returned unchanged.
func (i Intent) WithFocusBrowser() Intent {
	if i.Kind() != KindTypeText {
		return i
	}
	i.focusBrowser = true
	return i
}

// IsAction reports whether the intent maps to an executor operation.
func (i Intent) IsAction() bool {
	return i.Kind() != KindConversation
}

// Validate checks that the parameters required by the executor are present.
func (i Intent) Validate() error {
	switch i.Kind() {
	case KindOpenApp:
		if i.appName == "" {
			return fmt.Errorf("%w: app_name", ErrMissingParameter)
		}
	case KindTypeText:
		if i.text == "" {
			return fmt.Errorf("%w: text", ErrMissingParameter)
		}
	case KindVolume:
		if i.level < MinVolume || i.level > MaxVolume {
			return fmt.Errorf("volume level %d out of range", i.level)
		}
	}
	return nil
}

// String renders the intent for logs.
func (i Intent) String() string {
	switch i.Kind() {
	case KindOpenApp:
		return fmt.Sprintf("open_app(%q)", i.appName)
	case KindVolume:
		return fmt.Sprintf("volume(%d)", i.level)
	case KindScreenshot:
		return fmt.Sprintf("screenshot(%q)", i.filename)
	case KindTypeText:
		return fmt.Sprintf("type_text(%q, delay=%.2f, focus_browser=%t)", i.text, i.delay, i.focusBrowser)
	default:
		return "conversation()"
	}
}

// ClampVolume bounds a level to [MinVolume, MaxVolume].
func ClampVolume(level int) int {
	return max(MinVolume, min(MaxVolume, level))
}

// ActionOutcome is the result of executing one intent.
type ActionOutcome struct {
	// Succeeded is false when the OS action raised or reported an error.
	Succeeded bool

	// Description is the human-readable outcome (or the error text on failure).
	Description string

	// ActionLabel is a short label such as "Opened Safari". Empty on failure.
	ActionLabel string
}

// Success builds a successful outcome.
func Success(description, label string) ActionOutcome {
	return ActionOutcome{Succeeded: true, Description: description, ActionLabel: label}
}

// Failure builds a failed outcome carrying the underlying error text.
func Failure(err error) ActionOutcome {
	desc := "unknown error"
	if err != nil {
		desc = err.Error()
	}
	return ActionOutcome{Succeeded: false, Description: desc}
}
