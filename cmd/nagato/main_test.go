package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter/breaker"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "nagato dev\n", out.String())
}

func TestNewBackend(t *testing.T) {
	b, err := newBackend(context.Background(), config.InterpreterConfig{
		Backend: "local",
		Timeout: time.Second,
		Breaker: config.BreakerConfig{Enabled: true},
	})
	require.NoError(t, err)
	assert.IsType(t, &breaker.Backend{}, b)
	assert.Equal(t, "local", b.Name())

	_, err = newBackend(context.Background(), config.InterpreterConfig{Backend: "gemini"})
	assert.Error(t, err, "gemini without an API key")

	_, err = newBackend(context.Background(), config.InterpreterConfig{Backend: "watson"})
	assert.Error(t, err)
}
