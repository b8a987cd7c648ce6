// Package speech serializes spoken feedback. Say never blocks the command
// pipeline: utterances go onto a bounded queue drained by one worker that
// synthesizes and plays them in order.
package speech

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nadzzz/nagato/internal/metrics"
	"github.com/nadzzz/nagato/internal/tts"
)

// Speaker speaks text aloud, fire-and-forget.
type Speaker interface {
	Say(text string)
}

// Discard is a Speaker that drops everything.
type Discard struct{}

// Say implements Speaker.
func (Discard) Say(string) {}

// Player plays an encoded audio clip and blocks until it finishes.
type Player interface {
	Play(ctx context.Context, clip []byte, ext string) error
}

// Options tune a Queue.
type Options struct {
	Size           int
	Language       string
	Conversational bool
	Rand           *rand.Rand
	Metrics        *metrics.Metrics
}

// Queue is the process-wide speech output queue.
type Queue struct {
	synth  tts.Synthesizer
	player Player
	opts   Options
	items  chan string
	mu     sync.Mutex // guards closed, pending, idle and the rng
	closed bool

	pending int           // enqueued and not yet spoken
	idle    chan struct{} // closed when pending drops to zero
}

// NewQueue creates a queue. Call Run to start the worker.
func NewQueue(synth tts.Synthesizer, player Player, opts Options) *Queue {
	if opts.Size <= 0 {
		opts.Size = 16
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return &Queue{
		synth:  synth,
		player: player,
		opts:   opts,
		items:  make(chan string, opts.Size),
	}
}

// Say enqueues text. When the queue is full the utterance is dropped.
func (q *Queue) Say(text string) {
	if text == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.opts.Conversational {
		text = Conversationalize(text, q.opts.Rand)
	}
	select {
	case q.items <- text:
		if q.pending == 0 {
			q.idle = make(chan struct{})
		}
		q.pending++
	default:
		slog.Warn("speech queue full, dropping utterance", "text", text)
		q.opts.Metrics.SpeechDrop()
	}
}

// Run drains the queue until ctx is cancelled or Close is called, speaking
// one utterance at a time. Run must be called by a single goroutine.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-q.items:
			if !ok {
				return
			}
			q.speak(ctx, text)
			q.done()
		}
	}
}

// Wait blocks until every utterance queued so far has been spoken, or ctx
// is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if q.pending == 0 {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// Close stops accepting utterances. Run returns once the ones already
// queued have been spoken.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

func (q *Queue) speak(ctx context.Context, text string) {
	res, err := q.synth.Synthesize(ctx, text, tts.SynthesizeOpts{Language: q.opts.Language})
	if err != nil {
		slog.Error("speech synthesis failed", "backend", q.synth.Name(), "error", err)
		return
	}
	if err := q.player.Play(ctx, res.Audio, res.Extension()); err != nil {
		slog.Error("speech playback failed", "error", err)
	}
}
