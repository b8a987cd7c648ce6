// Package breaker wraps an interpreter backend in a circuit breaker so a
// failing model endpoint is skipped quickly instead of stalling every command.
package breaker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("interpreter circuit open")

// Backend decorates an interpreter.Backend with a circuit breaker. Only
// LLM calls pass through the breaker; transcription goes straight through.
type Backend struct {
	interpreter.Backend
	cb *gobreaker.CircuitBreaker
}

// Wrap returns b guarded by a breaker configured from cfg.
func Wrap(b interpreter.Backend, cfg config.BreakerConfig) *Backend {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	settings := gobreaker.Settings{
		Name:        b.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("interpreter circuit breaker state changed",
				"backend", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A cancelled command says nothing about the health of the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &Backend{Backend: b, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *Backend) State() string { return b.cb.State().String() }

// ClassifyFunction runs the wrapped call inside the breaker.
func (b *Backend) ClassifyFunction(ctx context.Context, system, text string, functions []interpreter.FunctionSpec) (*interpreter.FunctionCall, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.Backend.ClassifyFunction(ctx, system, text, functions)
	})
	if err != nil {
		return nil, translate(err)
	}
	call, _ := out.(*interpreter.FunctionCall)
	return call, nil
}

// CompleteText runs the wrapped call inside the breaker.
func (b *Backend) CompleteText(ctx context.Context, req interpreter.CompletionRequest) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.Backend.CompleteText(ctx, req)
	})
	if err != nil {
		return "", translate(err)
	}
	return out.(string), nil
}

func translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}
