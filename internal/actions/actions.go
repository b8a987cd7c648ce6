// Package actions executes intents against the desktop.
//
// ComputerActions is the raw capability set. Executor sits in front of it
// and turns every error (and panic) into a failed intent.ActionOutcome, so
// nothing raised by the OS crosses into the dispatcher.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/nadzzz/nagato/internal/intent"
	"github.com/nadzzz/nagato/internal/metrics"
)

// ComputerActions is the OS automation capability set.
type ComputerActions interface {
	OpenApplication(ctx context.Context, name string) (string, error)
	OpenNewBrowserTab(ctx context.Context) (string, error)
	FocusAddressBar(ctx context.Context) (string, error)
	AdjustVolume(ctx context.Context, level int) (string, error)
	TakeScreenshot(ctx context.Context, filename string) (string, error)
	TypeText(ctx context.Context, text string, delay float64, focusBrowser bool) (string, error)
}

// Executor runs intents and never fails. Calls are not retried: typing the
// same text twice is visible to the user.
type Executor struct {
	computer ComputerActions
	metrics  *metrics.Metrics
}

// NewExecutor wraps computer.
func NewExecutor(computer ComputerActions, m *metrics.Metrics) *Executor {
	return &Executor{computer: computer, metrics: m}
}

// Execute performs the action for in.
func (e *Executor) Execute(ctx context.Context, in intent.Intent) intent.ActionOutcome {
	if err := in.Validate(); err != nil {
		return e.finish(in.Kind(), intent.Failure(err))
	}
	switch in.Kind() {
	case intent.KindOpenApp:
		return e.OpenApplication(ctx, in.AppName())
	case intent.KindVolume:
		level := intent.ClampVolume(in.Level())
		return e.run(ctx, in.Kind(), fmt.Sprintf("Volume set to %d%%", level), func() (string, error) {
			return e.computer.AdjustVolume(ctx, level)
		})
	case intent.KindScreenshot:
		return e.run(ctx, in.Kind(), "Screenshot saved", func() (string, error) {
			return e.computer.TakeScreenshot(ctx, in.Filename())
		})
	case intent.KindTypeText:
		return e.TypeText(ctx, in.Text(), in.Delay(), in.FocusBrowser())
	}
	return intent.Failure(fmt.Errorf("no action for intent %s", in.Kind()))
}

// OpenApplication launches name.
func (e *Executor) OpenApplication(ctx context.Context, name string) intent.ActionOutcome {
	return e.run(ctx, intent.KindOpenApp, "Opened "+name, func() (string, error) {
		return e.computer.OpenApplication(ctx, name)
	})
}

// OpenNewTab opens a tab in the focused browser.
func (e *Executor) OpenNewTab(ctx context.Context) intent.ActionOutcome {
	return e.run(ctx, "new_tab", "Opened new tab", func() (string, error) {
		return e.computer.OpenNewBrowserTab(ctx)
	})
}

// TypeText types text into the focused application.
func (e *Executor) TypeText(ctx context.Context, text string, delay float64, focusBrowser bool) intent.ActionOutcome {
	label := "Typed: " + text
	if focusBrowser {
		label = "Searched for: " + text
	}
	return e.run(ctx, intent.KindTypeText, label, func() (string, error) {
		return e.computer.TypeText(ctx, text, delay, focusBrowser)
	})
}

func (e *Executor) run(ctx context.Context, kind intent.Kind, label string, fn func() (string, error)) (out intent.ActionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("action panicked", "action", kind, "panic", r, "stack", string(debug.Stack()))
			out = e.finish(kind, intent.Failure(fmt.Errorf("%v", r)))
		}
	}()

	if err := ctx.Err(); err != nil {
		return e.finish(kind, intent.Failure(err))
	}
	desc, err := fn()
	if err != nil {
		slog.Warn("action failed", "action", kind, "error", err)
		return e.finish(kind, intent.Failure(err))
	}
	slog.Debug("action done", "action", kind, "result", desc)
	return e.finish(kind, intent.Success(desc, label))
}

func (e *Executor) finish(kind intent.Kind, out intent.ActionOutcome) intent.ActionOutcome {
	e.metrics.ObserveAction(string(kind), out.Succeeded)
	return out
}
