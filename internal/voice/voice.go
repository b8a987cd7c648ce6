// Package voice turns microphone input into command transcripts.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/speech"
)

// ErrNothingHeard is returned when a recording transcribes to no text.
var ErrNothingHeard = errors.New("no speech recognized")

// Recorder captures one clip of WAV audio.
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

// Transcript is one recognized utterance, or the error that prevented it.
type Transcript struct {
	Text string
	Err  error

	ack chan struct{}
}

// Done tells Run the transcript has been handled and the next recording may
// start. Extra calls are ignored.
func (t Transcript) Done() {
	if t.ack == nil {
		return
	}
	select {
	case t.ack <- struct{}{}:
	default:
	}
}

// Listener records and transcribes spoken commands.
type Listener struct {
	rec      Recorder
	stt      interpreter.Transcriber
	speaker  speech.Speaker
	language string
	pause    time.Duration
}

// Option customizes a Listener.
type Option func(*Listener)

// WithSpeaker announces listening and processing states.
func WithSpeaker(s speech.Speaker) Option {
	return func(l *Listener) { l.speaker = s }
}

// WithLanguage hints the transcription language.
func WithLanguage(lang string) Option {
	return func(l *Listener) { l.language = lang }
}

// WithErrorPause sets how long Run waits after a failed cycle.
func WithErrorPause(d time.Duration) Option {
	return func(l *Listener) { l.pause = d }
}

// NewListener creates a listener.
func NewListener(rec Recorder, stt interpreter.Transcriber, opts ...Option) *Listener {
	l := &Listener{rec: rec, stt: stt, speaker: speech.Discard{}, pause: time.Second}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Listen records one clip and returns its lower-cased transcript.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	l.speaker.Say(speech.StatusListening)
	clip, err := l.rec.Record(ctx)
	if err != nil {
		return "", fmt.Errorf("recording: %w", err)
	}

	l.speaker.Say(speech.StatusProcessing)
	res, err := l.stt.Transcribe(ctx, clip, "audio/wav", interpreter.TranscribeOpts{Language: l.language})
	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}
	text := strings.ToLower(strings.TrimSpace(res.Text))
	if text == "" {
		return "", ErrNothingHeard
	}
	slog.Debug("heard command", "text", text, "language", res.Language)
	return text, nil
}

// Run listens continuously and delivers transcripts until ctx is done. The
// returned channel is closed when the worker exits. The next recording
// starts only after the receiver calls Done on the current transcript, so
// the microphone does not pick up the reply.
func (l *Listener) Run(ctx context.Context) <-chan Transcript {
	out := make(chan Transcript)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			text, err := l.Listen(ctx)
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrNothingHeard) {
				continue
			}
			ack := make(chan struct{}, 1)
			select {
			case out <- Transcript{Text: text, Err: err, ack: ack}:
			case <-ctx.Done():
				return
			}
			select {
			case <-ack:
			case <-ctx.Done():
				return
			}
			if err != nil {
				select {
				case <-time.After(l.pause):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
