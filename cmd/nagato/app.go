package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nadzzz/nagato/internal/actions"
	"github.com/nadzzz/nagato/internal/audio"
	"github.com/nadzzz/nagato/internal/classifier"
	"github.com/nadzzz/nagato/internal/compose"
	"github.com/nadzzz/nagato/internal/compound"
	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/dispatch"
	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/interpreter/breaker"
	geminiinterp "github.com/nadzzz/nagato/internal/interpreter/gemini"
	localinterp "github.com/nadzzz/nagato/internal/interpreter/local"
	openaiinterp "github.com/nadzzz/nagato/internal/interpreter/openai"
	"github.com/nadzzz/nagato/internal/metrics"
	"github.com/nadzzz/nagato/internal/speech"
	"github.com/nadzzz/nagato/internal/tts"
	openaitts "github.com/nadzzz/nagato/internal/tts/openai"
	"github.com/nadzzz/nagato/internal/tts/piper"
)

// app holds the wired components shared by the commands.
type app struct {
	backend    interpreter.Backend
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	speaker    speech.Speaker
	dispatcher *dispatch.Dispatcher

	queue     *speech.Queue // nil when speech is off
	synth     tts.Synthesizer
	speechEnd chan struct{}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	backend, err := newBackend(ctx, cfg.Interpreter)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &app{backend: backend, registry: reg, metrics: m, speaker: speech.Discard{}}

	voice := cfg.Assistant.VoiceEnabled && cfg.TTS.Enabled
	if voice {
		a.synth = newSynthesizer(cfg)
		a.queue = speech.NewQueue(a.synth, audio.NewPlayer(cfg.Audio.TempDir), speech.Options{
			Size:           cfg.TTS.QueueSize,
			Language:       cfg.TTS.Piper.Language,
			Conversational: cfg.TTS.Conversational,
			Metrics:        m,
		})
		a.speaker = a.queue
		a.speechEnd = make(chan struct{})
		go func() {
			defer close(a.speechEnd)
			a.queue.Run(ctx)
		}()
		slog.Info("voice output enabled", "tts", a.synth.Name())
	}

	timeout := cfg.Interpreter.Timeout
	a.dispatcher = dispatch.New(dispatch.Options{
		Classifier:     classifier.New(backend, timeout, m),
		Compound:       compound.NewParser(backend, timeout),
		Executor:       actions.NewExecutor(actions.NewDesktop(cfg.Actions), m),
		Composer:       compose.New(nil, voice),
		LLM:            backend,
		Transcriber:    backend,
		Speaker:        a.speaker,
		Metrics:        m,
		DefaultBrowser: cfg.Assistant.DefaultBrowser,
		Language:       cfg.Interpreter.Local.Language,
		Timeout:        timeout,
	})
	return a, nil
}

// close waits for queued speech to finish and releases the backends.
func (a *app) close() {
	if a.queue != nil {
		a.queue.Close()
		<-a.speechEnd
		if err := a.synth.Close(); err != nil {
			slog.Warn("closing synthesizer", "error", err)
		}
	}
	if err := a.backend.Close(); err != nil {
		slog.Warn("closing interpreter", "error", err)
	}
}

func newBackend(ctx context.Context, cfg config.InterpreterConfig) (interpreter.Backend, error) {
	var b interpreter.Backend
	switch cfg.Backend {
	case "openai":
		b = openaiinterp.New(cfg.OpenAI, cfg.Timeout)
		slog.Info("using OpenAI interpreter",
			"transcription_model", cfg.OpenAI.TranscriptionModel,
			"completion_model", cfg.OpenAI.CompletionModel)
	case "local":
		b = localinterp.New(cfg.Local, cfg.Timeout)
		slog.Info("using local interpreter",
			"whisper", cfg.Local.WhisperEndpoint,
			"llm", cfg.Local.LLMEndpoint)
	case "gemini":
		g, err := geminiinterp.New(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		b = g
		slog.Info("using Gemini interpreter", "model", cfg.Gemini.Model)
	default:
		return nil, fmt.Errorf("unknown interpreter backend %q", cfg.Backend)
	}
	if cfg.Breaker.Enabled {
		b = breaker.Wrap(b, cfg.Breaker)
	}
	return b, nil
}

func newSynthesizer(cfg *config.Config) tts.Synthesizer {
	if cfg.TTS.Backend == "piper" {
		return piper.New(cfg.TTS.Piper)
	}
	return openaitts.New(cfg.TTS.OpenAI, cfg.Interpreter.OpenAI.APIKey, cfg.Interpreter.OpenAI.BaseURL)
}
