// Package openai implements the TTS Synthesizer with OpenAI's speech API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/tts"
)

// Synthesizer calls POST /audio/speech.
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	speed   float64
	format  string
	client  *http.Client
}

// New creates an OpenAI synthesizer. apiKey and baseURL are shared with the
// OpenAI interpreter settings.
func New(cfg config.OpenAITTSConfig, apiKey, baseURL string) *Synthesizer {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	s := &Synthesizer{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		voice:   cfg.Voice,
		speed:   cfg.Speed,
		format:  cfg.Format,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	if s.model == "" {
		s.model = "tts-1"
	}
	if s.voice == "" {
		s.voice = "nova"
	}
	if s.format == "" {
		s.format = "mp3"
	}
	return s
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "openai" }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize renders text with the configured voice.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}
	voice := s.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}
	body, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: s.format,
		Speed:          s.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &interpreter.Error{Provider: "openai-tts", Code: "network_error", Message: err.Error(), Err: err, Retry: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &interpreter.Error{
			Provider: "openai-tts",
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  string(msg),
			Retry:    resp.StatusCode >= 500,
		}
	}
	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech: %w", err)
	}
	return &tts.SynthesizeResult{Audio: clip, ContentType: contentType(s.format), Channels: 1}, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }

func contentType(format string) string {
	switch format {
	case "wav", "pcm":
		return "audio/wav"
	case "opus":
		return "audio/opus"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
