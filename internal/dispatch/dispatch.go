// Package dispatch implements the command cycle.
//
// A command is first checked against the local heuristics. Compound,
// browser search and generic search commands run a fixed sequence of
// actions; everything else is classified by the LLM, executed and composed
// into a response. Nothing escapes ProcessCommand: failures become replies.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/nagato/internal/actions"
	"github.com/nadzzz/nagato/internal/compose"
	"github.com/nadzzz/nagato/internal/compound"
	"github.com/nadzzz/nagato/internal/heuristics"
	"github.com/nadzzz/nagato/internal/intent"
	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/message"
	"github.com/nadzzz/nagato/internal/metrics"
	"github.com/nadzzz/nagato/internal/speech"
)

// Paths name the branch that handled a command.
const (
	PathCompound      = "compound"
	PathBrowserSearch = "browser_search"
	PathGenericSearch = "generic_search"
	PathClassified    = "classified"
	PathFallback      = "fallback"
	PathError         = "error"
)

// PersonaPrompt is the system prompt for conversational replies.
const PersonaPrompt = `You are Nagato, a friendly and capable assistant.
Respond naturally to commands about controlling the computer, without mentioning
that you're an AI. Keep responses conversational and direct, as if you're
having a casual chat.`

const (
	conversationTemperature = 0.7
	conversationMaxTokens   = 150
)

// Classifier maps text to an intent. It never fails.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Intent
}

// CompoundParser splits "open X and type Y" commands.
type CompoundParser interface {
	TryParse(ctx context.Context, text string) (compound.Result, bool)
}

// Options wires a Dispatcher. Classifier, Compound, Executor, Composer and
// LLM are required.
type Options struct {
	Classifier Classifier
	Compound   CompoundParser
	Executor   *actions.Executor
	Composer   *compose.Composer
	LLM        interpreter.LLM

	// Transcriber handles audio requests in Handle. Optional.
	Transcriber interpreter.Transcriber
	// Speaker receives step announcements and voice feedback. Optional.
	Speaker speech.Speaker
	Metrics *metrics.Metrics

	DefaultBrowser string
	Language       string
	// Timeout bounds the conversational LLM call.
	Timeout time.Duration
	// OnState is called on every state transition. Optional.
	OnState func(State)
}

// Result is the outcome of one command cycle.
type Result struct {
	Path string
	// Response is the composed response of the plain path. Sequences leave
	// it nil.
	Response *message.AssistantResponse
	// Text is the final display text.
	Text string
}

func (r Result) ok() bool {
	if r.Path == PathError || r.Path == PathFallback {
		return false
	}
	return r.Response == nil || r.Response.Success
}

// Dispatcher runs command cycles one at a time.
type Dispatcher struct {
	opts Options

	mu    sync.Mutex // one cycle at a time
	state atomic.Int32
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Speaker == nil {
		opts.Speaker = speech.Discard{}
	}
	if opts.DefaultBrowser == "" {
		opts.DefaultBrowser = "Safari"
	}
	return &Dispatcher{opts: opts}
}

// ProcessCommand runs one command cycle and returns the final text.
func (d *Dispatcher) ProcessCommand(ctx context.Context, raw string) string {
	return d.Run(ctx, raw).Text
}

// Run runs one command cycle and returns its structured result.
func (d *Dispatcher) Run(ctx context.Context, raw string) (res Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	logger := slog.With("command_id", uuid.NewString())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("command cycle panicked", "panic", r, "stack", string(debug.Stack()))
			d.transition(logger, ErrorFallback)
			text := fmt.Sprintf("Sorry, I couldn't process that command: %v", r)
			if d.opts.Composer.VoiceEnabled() {
				d.opts.Speaker.Say(text)
			}
			res = Result{Path: PathError, Text: text}
		}
		d.opts.Metrics.ObserveCommand(res.Path, res.ok(), time.Since(start))
		logger.Info("command done", "path", res.Path, "elapsed", time.Since(start))
		d.transition(logger, Idle)
	}()

	text := strings.TrimSpace(raw)
	logger.Info("command received", "text", text)
	if text == "" {
		r := d.opts.Composer.Plain(compose.NotSure)
		d.say(r.VoiceFeedback)
		d.transition(logger, Done)
		return Result{Path: PathFallback, Response: &r, Text: r.Message}
	}

	switch m := heuristics.Detect(text); m.Kind {
	case heuristics.Compound:
		d.transition(logger, Classifying)
		if parsed, ok := d.opts.Compound.TryParse(ctx, text); ok {
			return d.runCompound(ctx, logger, parsed)
		}
		logger.Debug("compound extraction failed, classifying instead")
	case heuristics.BrowserSearch:
		return d.runBrowserSearch(ctx, logger, text, m.Browser)
	case heuristics.GenericSearch:
		return d.runGenericSearch(ctx, logger, text)
	}
	return d.runPlain(ctx, logger, text)
}

// Handle adapts a transport request to a command cycle, transcribing audio
// first when present.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) (*message.Reply, error) {
	req.EnsureID()
	logger := slog.With("request_id", req.ID, "source", req.Source)
	reply := &message.Reply{RequestID: req.ID}

	text := req.Text
	if req.HasAudio() {
		if d.opts.Transcriber == nil {
			reply.Error = "audio commands are not supported by the configured backend"
			return reply, nil
		}
		logger.Debug("transcribing audio", "content_type", req.ContentType, "bytes", len(req.Audio))
		res, err := d.opts.Transcriber.Transcribe(ctx, req.Audio, req.ContentType, interpreter.TranscribeOpts{
			Language: d.opts.Language,
		})
		if err != nil {
			logger.Error("transcription failed", "error", err)
			reply.Error = fmt.Sprintf("transcription failed: %v", err)
			return reply, nil
		}
		text = strings.ToLower(strings.TrimSpace(res.Text))
		reply.Transcript = text
	}
	if strings.TrimSpace(text) == "" {
		reply.Error = "request has no audio and no text"
		return reply, nil
	}

	res := d.Run(ctx, text)
	reply.Path = res.Path
	reply.Text = res.Text
	reply.Response = res.Response
	return reply, nil
}

// State returns the current cycle state. It does not wait for a running
// cycle.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// runPlain classifies, executes and composes. Failed commands degrade into
// a conversational reply.
func (d *Dispatcher) runPlain(ctx context.Context, logger *slog.Logger, text string) Result {
	d.transition(logger, Classifying)
	in := d.opts.Classifier.Classify(ctx, text)
	logger.Info("classified", "intent", in.String())

	var out intent.ActionOutcome
	if in.IsAction() {
		d.transition(logger, Executing)
		out = d.opts.Executor.Execute(ctx, in)
	}

	d.transition(logger, Composing)
	resp := d.opts.Composer.Compose(in.Kind(), out)
	if resp.Success {
		d.say(resp.VoiceFeedback)
		d.transition(logger, Done)
		return Result{Path: PathClassified, Response: &resp, Text: resp.DisplayText()}
	}

	d.transition(logger, ErrorFallback)
	d.say(resp.VoiceFeedback)
	reply, err := d.converse(ctx, text)
	if err != nil {
		logger.Warn("conversational reply failed", "error", err)
		return Result{Path: PathFallback, Response: &resp, Text: resp.Message}
	}
	conv := d.opts.Composer.Plain(reply)
	d.say(conv.VoiceFeedback)
	if in.Kind() == intent.KindConversation {
		return Result{Path: PathFallback, Response: &conv, Text: reply}
	}
	// The failure text carries the cause and stays ahead of the chat reply.
	return Result{Path: PathFallback, Response: &resp, Text: resp.Message + "\n" + reply}
}

func (d *Dispatcher) converse(ctx context.Context, text string) (string, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}
	reply, err := d.opts.LLM.CompleteText(ctx, interpreter.CompletionRequest{
		System:      PersonaPrompt,
		User:        text,
		Temperature: conversationTemperature,
		MaxTokens:   conversationMaxTokens,
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty reply from %s", d.opts.LLM.Name())
	}
	return reply, nil
}

// open launches app and returns the composed open message, which is also
// spoken.
func (d *Dispatcher) open(ctx context.Context, app string) string {
	d.announce("Opening " + app)
	resp := d.opts.Composer.Compose(intent.KindOpenApp, d.opts.Executor.OpenApplication(ctx, app))
	d.say(resp.VoiceFeedback)
	return resp.Message
}

func (d *Dispatcher) newTab(ctx context.Context, browser string) {
	d.announce("Opening new tab in " + browser)
	d.opts.Executor.OpenNewTab(ctx)
}

func (d *Dispatcher) runCompound(ctx context.Context, logger *slog.Logger, c compound.Result) Result {
	logger.Info("compound command", "app", c.ApplicationName, "text", c.TextToType)
	d.transition(logger, Executing)
	openMsg := d.open(ctx, c.ApplicationName)

	var reply string
	if heuristics.IsBrowser(c.ApplicationName) {
		d.newTab(ctx, c.ApplicationName)
		verb := "Typing"
		if heuristics.IsQuestion(c.TextToType) {
			verb = "Searching for"
		}
		d.announce(verb + " " + c.TextToType)
		d.opts.Executor.TypeText(ctx, c.TextToType, intent.DefaultTypeDelay, true)
		reply = fmt.Sprintf("%s I opened a new tab and typed '%s' for you.", openMsg, c.TextToType)
	} else {
		d.announce(fmt.Sprintf("Typing %s in %s", c.TextToType, c.ApplicationName))
		out := d.opts.Executor.TypeText(ctx, c.TextToType, intent.DefaultTypeDelay, false)
		d.say(d.opts.Composer.Compose(intent.KindTypeText, out).VoiceFeedback)
		reply = fmt.Sprintf("%s I typed '%s' in %s for you.", openMsg, c.TextToType, c.ApplicationName)
	}

	d.transition(logger, Composing)
	d.transition(logger, Done)
	return Result{Path: PathCompound, Text: reply}
}

func (d *Dispatcher) runBrowserSearch(ctx context.Context, logger *slog.Logger, text, browser string) Result {
	logger.Info("browser command", "browser", browser)
	d.transition(logger, Executing)
	openMsg := d.open(ctx, browser)
	d.newTab(ctx, browser)

	reply := openMsg + " I opened a new tab for you."
	if heuristics.WantsQuery(text) {
		if q, ok := heuristics.ExtractSearchOrURL(text, browser); ok && q != "" {
			d.search(ctx, q)
			reply = fmt.Sprintf("%s I opened a new tab and searched for '%s'.", openMsg, q)
		}
	}

	d.transition(logger, Composing)
	d.transition(logger, Done)
	return Result{Path: PathBrowserSearch, Text: reply}
}

func (d *Dispatcher) runGenericSearch(ctx context.Context, logger *slog.Logger, text string) Result {
	browser := d.opts.DefaultBrowser
	query := heuristics.StripSearchLeadIn(text)
	logger.Info("search command", "browser", browser, "query", query)
	d.transition(logger, Executing)
	openMsg := d.open(ctx, browser)
	d.newTab(ctx, browser)

	reply := openMsg + " I opened a new tab for you."
	if query != "" {
		d.search(ctx, query)
		reply = fmt.Sprintf("%s I opened a new tab and searched for '%s' for you.", openMsg, query)
	}

	d.transition(logger, Composing)
	d.transition(logger, Done)
	return Result{Path: PathGenericSearch, Text: reply}
}

func (d *Dispatcher) search(ctx context.Context, query string) {
	d.announce("Searching for " + query)
	d.opts.Executor.TypeText(ctx, query, intent.DefaultTypeDelay, true)
}

// announce speaks a sequence step when voice is enabled.
func (d *Dispatcher) announce(step string) {
	if d.opts.Composer.VoiceEnabled() {
		d.opts.Speaker.Say(step)
	}
}

func (d *Dispatcher) say(text string) {
	if text != "" {
		d.opts.Speaker.Say(text)
	}
}

func (d *Dispatcher) transition(logger *slog.Logger, to State) {
	from := State(d.state.Swap(int32(to)))
	if from == to {
		return
	}
	logger.Debug("state", "from", from, "to", to)
	if d.opts.OnState != nil {
		d.opts.OnState(to)
	}
}
