package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/actions"
	"github.com/nadzzz/nagato/internal/compose"
	"github.com/nadzzz/nagato/internal/compound"
	"github.com/nadzzz/nagato/internal/intent"
	"github.com/nadzzz/nagato/internal/interpreter"
	"github.com/nadzzz/nagato/internal/message"
	"github.com/nadzzz/nagato/internal/metrics"
)

// --- fakes ---

type fakeClassifier struct {
	result intent.Intent
	panic  string
	seen   []string
}

func (f *fakeClassifier) Classify(_ context.Context, text string) intent.Intent {
	f.seen = append(f.seen, text)
	if f.panic != "" {
		panic(f.panic)
	}
	return f.result
}

type fakeCompound struct {
	result compound.Result
	ok     bool
	calls  int
}

func (f *fakeCompound) TryParse(context.Context, string) (compound.Result, bool) {
	f.calls++
	return f.result, f.ok
}

type typed struct {
	text         string
	focusBrowser bool
}

type fakeComputer struct {
	openErr error
	opened  []string
	tabs    int
	typed   []typed
	volume  []int
}

func (f *fakeComputer) OpenApplication(_ context.Context, name string) (string, error) {
	if f.openErr != nil {
		return "", f.openErr
	}
	f.opened = append(f.opened, name)
	return "Opened " + name, nil
}

func (f *fakeComputer) OpenNewBrowserTab(context.Context) (string, error) {
	f.tabs++
	return "Opened new browser tab", nil
}

func (f *fakeComputer) FocusAddressBar(context.Context) (string, error) {
	return "Focused browser address bar", nil
}

func (f *fakeComputer) AdjustVolume(_ context.Context, level int) (string, error) {
	f.volume = append(f.volume, level)
	return fmt.Sprintf("Volume set to %d%%", level), nil
}

func (f *fakeComputer) TakeScreenshot(context.Context, string) (string, error) {
	return "Screenshot saved as shot.png", nil
}

func (f *fakeComputer) TypeText(_ context.Context, text string, _ float64, focusBrowser bool) (string, error) {
	f.typed = append(f.typed, typed{text, focusBrowser})
	return "Typed the text: " + text, nil
}

type fakeLLM struct {
	reply string
	err   error
	reqs  []interpreter.CompletionRequest
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }
func (f *fakeLLM) ClassifyFunction(context.Context, string, string, []interpreter.FunctionSpec) (*interpreter.FunctionCall, error) {
	return nil, nil
}

func (f *fakeLLM) CompleteText(_ context.Context, req interpreter.CompletionRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(context.Context, []byte, string, interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	return &interpreter.TranscribeResult{Text: f.text}, nil
}

type recordingSpeaker struct {
	mu   sync.Mutex
	said []string
}

func (r *recordingSpeaker) Say(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.said = append(r.said, text)
}

type harness struct {
	classifier *fakeClassifier
	compound   *fakeCompound
	computer   *fakeComputer
	llm        *fakeLLM
	speaker    *recordingSpeaker
	metrics    *metrics.Metrics
	states     []State
	d          *Dispatcher
}

func newHarness(t *testing.T, mutate func(h *harness)) *harness {
	t.Helper()
	h := &harness{
		classifier: &fakeClassifier{result: intent.Conversation()},
		compound:   &fakeCompound{},
		computer:   &fakeComputer{},
		llm:        &fakeLLM{reply: "Happy to chat!"},
		speaker:    &recordingSpeaker{},
		metrics:    metrics.New(prometheus.NewRegistry()),
	}
	if mutate != nil {
		mutate(h)
	}
	h.d = New(Options{
		Classifier:     h.classifier,
		Compound:       h.compound,
		Executor:       actions.NewExecutor(h.computer, h.metrics),
		Composer:       compose.New(rand.New(rand.NewPCG(7, 11)), true),
		LLM:            h.llm,
		Transcriber:    fakeTranscriber{text: "  Take A Screenshot "},
		Speaker:        h.speaker,
		Metrics:        h.metrics,
		DefaultBrowser: "Safari",
		OnState:        func(s State) { h.states = append(h.states, s) },
	})
	return h
}

// --- special-case sequences ---

func TestCompoundBrowserCommand(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.compound.result = compound.Result{ApplicationName: "Safari", TextToType: "what time is it in Ottawa"}
		h.compound.ok = true
	})

	res := h.d.Run(context.Background(), "open Safari and type what time is it in Ottawa")

	assert.Equal(t, PathCompound, res.Path)
	assert.Equal(t, []string{"Safari"}, h.computer.opened)
	assert.Equal(t, 1, h.computer.tabs)
	assert.Equal(t, []typed{{"what time is it in Ottawa", true}}, h.computer.typed)
	assert.True(t, strings.HasSuffix(res.Text, " I opened a new tab and typed 'what time is it in Ottawa' for you."), res.Text)
	assert.Contains(t, res.Text, "Opened Safari")
	assert.Empty(t, h.classifier.seen)

	assert.Contains(t, h.speaker.said, "Opening Safari")
	assert.Contains(t, h.speaker.said, "Opening new tab in Safari")
	assert.Contains(t, h.speaker.said, "Searching for what time is it in Ottawa")
}

func TestCompoundNonBrowserCommand(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.compound.result = compound.Result{ApplicationName: "TextEdit", TextToType: "hello world"}
		h.compound.ok = true
	})

	res := h.d.Run(context.Background(), "launch TextEdit and type hello world")

	assert.Equal(t, PathCompound, res.Path)
	assert.Zero(t, h.computer.tabs)
	assert.Equal(t, []typed{{"hello world", false}}, h.computer.typed)
	assert.True(t, strings.HasSuffix(res.Text, " I typed 'hello world' in TextEdit for you."), res.Text)
	assert.Contains(t, h.speaker.said, "Typing hello world in TextEdit")
}

func TestCompoundExtractionFailureClassifies(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.result = intent.OpenApp("Safari")
	})

	res := h.d.Run(context.Background(), "open safari and type")

	assert.Equal(t, 1, h.compound.calls)
	assert.Equal(t, []string{"open safari and type"}, h.classifier.seen)
	assert.Equal(t, PathClassified, res.Path)
	assert.Zero(t, h.computer.tabs, "must not fall through to the browser sequence")
}

func TestCompoundWinsOverBrowserSearch(t *testing.T) {
	// Matches both the compound pre-filter and the browser-named search rule.
	const text = "open chrome and search for cats"

	h := newHarness(t, func(h *harness) {
		h.compound.result = compound.Result{ApplicationName: "Chrome", TextToType: "cats"}
		h.compound.ok = true
	})
	res := h.d.Run(context.Background(), text)
	assert.Equal(t, PathCompound, res.Path)
	assert.Equal(t, []typed{{"cats", true}}, h.computer.typed)

	h = newHarness(t, func(h *harness) {
		h.classifier.result = intent.OpenApp("Chrome")
	})
	res = h.d.Run(context.Background(), text)
	assert.Equal(t, PathClassified, res.Path)
	assert.Equal(t, []string{text}, h.classifier.seen)
}

func TestBrowserSearchGoTo(t *testing.T) {
	h := newHarness(t, nil)

	res := h.d.Run(context.Background(), "open chrome and go to github")

	assert.Equal(t, PathBrowserSearch, res.Path)
	assert.Zero(t, h.compound.calls)
	assert.Equal(t, []string{"Chrome"}, h.computer.opened)
	assert.Equal(t, 1, h.computer.tabs)
	assert.Equal(t, []typed{{"github", true}}, h.computer.typed)
	assert.True(t, strings.HasSuffix(res.Text, " I opened a new tab and searched for 'github'."), res.Text)
	assert.Contains(t, h.speaker.said, "Searching for github")
}

func TestBrowserWithoutQuery(t *testing.T) {
	h := newHarness(t, nil)

	res := h.d.Run(context.Background(), "open firefox")

	assert.Equal(t, PathBrowserSearch, res.Path)
	assert.Equal(t, 1, h.computer.tabs)
	assert.Empty(t, h.computer.typed)
	assert.True(t, strings.HasSuffix(res.Text, " I opened a new tab for you."), res.Text)
}

func TestImplicitBrowserSearch(t *testing.T) {
	h := newHarness(t, nil)

	res := h.d.Run(context.Background(), "search for best pizza in Rome")

	assert.Equal(t, PathGenericSearch, res.Path)
	assert.Equal(t, []string{"Safari"}, h.computer.opened)
	assert.Equal(t, 1, h.computer.tabs)
	assert.Equal(t, []typed{{"best pizza in Rome", true}}, h.computer.typed)
	assert.True(t, strings.HasSuffix(res.Text, " I opened a new tab and searched for 'best pizza in Rome' for you."), res.Text)
	assert.Equal(t, []State{Executing, Composing, Done, Idle}, h.states)
}

func TestSequenceContinuesAfterOpenFailure(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.computer.openErr = errors.New("Safari is not installed")
	})

	res := h.d.Run(context.Background(), "search for weather")

	assert.Contains(t, res.Text, "Safari is not installed")
	assert.Equal(t, []typed{{"weather", true}}, h.computer.typed)
}

// --- plain path ---

func TestClassifiedCommand(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.result = intent.Volume(150)
	})

	res := h.d.Run(context.Background(), "turn the volume all the way up")

	require.NotNil(t, res.Response)
	assert.Equal(t, PathClassified, res.Path)
	assert.Equal(t, []int{100}, h.computer.volume)
	assert.True(t, res.Response.Success)
	assert.Equal(t, "Volume set to 100%", res.Response.ActionTaken)
	assert.Equal(t, res.Response.Message+"\n"+res.Response.ActionTaken, res.Text)
	assert.Equal(t, res.Response.Message+" "+res.Response.ActionTaken, res.Response.VoiceFeedback)
	assert.Equal(t, []string{res.Response.VoiceFeedback}, h.speaker.said)
	assert.Equal(t, []State{Classifying, Executing, Composing, Done, Idle}, h.states)
	assert.Empty(t, h.llm.reqs)
}

func TestFailurePath(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.result = intent.OpenApp("Xcode")
		h.computer.openErr = errors.New("Unable to find application named 'Xcode'")
	})

	res := h.d.Run(context.Background(), "open xcode")

	require.NotNil(t, res.Response)
	assert.False(t, res.Response.Success)
	assert.Contains(t, res.Response.Message, "Unable to find application named 'Xcode'")
	assert.Empty(t, res.Response.ActionTaken)
	assert.Equal(t, PathFallback, res.Path)
	assert.Equal(t, res.Response.Message+"\nHappy to chat!", res.Text)
	assert.Contains(t, res.Text, "Unable to find application named 'Xcode'")
	assert.Contains(t, h.states, ErrorFallback)

	require.Len(t, h.speaker.said, 2)
	assert.Contains(t, h.speaker.said[0], "Unable to find application named 'Xcode'")
	assert.Equal(t, res.Response.VoiceFeedback, h.speaker.said[0])
	assert.Equal(t, "Happy to chat!", h.speaker.said[1])
}

func TestFailurePathWhenConversationFails(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.result = intent.OpenApp("Xcode")
		h.computer.openErr = errors.New("permission denied")
		h.llm.err = errors.New("connection refused")
	})

	out := h.d.ProcessCommand(context.Background(), "open xcode")

	assert.Contains(t, out, "permission denied")
	require.Len(t, h.speaker.said, 1)
	assert.Contains(t, h.speaker.said[0], "permission denied")
}

func TestFallbackPath(t *testing.T) {
	h := newHarness(t, nil)

	res := h.d.Run(context.Background(), "tell me a joke")

	require.NotNil(t, res.Response)
	assert.Equal(t, PathFallback, res.Path)
	assert.False(t, res.Response.Success)
	assert.Empty(t, res.Response.ActionTaken)
	assert.Equal(t, "Happy to chat!", res.Response.Message)
	assert.Equal(t, "Happy to chat!", res.Text)
	assert.Equal(t, []string{compose.NotSure, "Happy to chat!"}, h.speaker.said)

	require.Len(t, h.llm.reqs, 1)
	req := h.llm.reqs[0]
	assert.Equal(t, PersonaPrompt, req.System)
	assert.Equal(t, "tell me a joke", req.User)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Equal(t, 150, req.MaxTokens)
}

func TestFallbackWhenConversationFails(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.llm.err = errors.New("connection refused")
	})

	res := h.d.Run(context.Background(), "tell me a joke")

	assert.Equal(t, compose.NotSure, res.Text)
	assert.Equal(t, []string{compose.NotSure}, h.speaker.said)
}

func TestEmptyCommand(t *testing.T) {
	h := newHarness(t, nil)

	res := h.d.Run(context.Background(), "   ")

	assert.Equal(t, compose.NotSure, res.Text)
	assert.Empty(t, h.classifier.seen)
	assert.Empty(t, h.llm.reqs)
}

// --- boundary ---

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.panic = "boom"
	})

	out := h.d.ProcessCommand(context.Background(), "open notes")

	assert.Equal(t, "Sorry, I couldn't process that command: boom", out)
	assert.Equal(t, []string{out}, h.speaker.said)
	assert.Equal(t, Idle, h.d.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues(PathError, "failure")))
}

func TestCommandMetrics(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.result = intent.Screenshot("")
	})

	h.d.Run(context.Background(), "take a screenshot")
	h.d.Run(context.Background(), "search for cats")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues(PathClassified, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues(PathGenericSearch, "success")))
}

func TestHandleTranscribesAudio(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.result = intent.Screenshot("")
	})

	reply, err := h.d.Handle(context.Background(), &message.Request{Audio: []byte("RIFF"), ContentType: "audio/wav"})

	require.NoError(t, err)
	assert.NotEmpty(t, reply.RequestID)
	assert.Equal(t, "take a screenshot", reply.Transcript)
	assert.Equal(t, []string{"take a screenshot"}, h.classifier.seen)
	assert.Equal(t, PathClassified, reply.Path)
	require.NotNil(t, reply.Response)
	assert.Equal(t, "Screenshot saved", reply.Response.ActionTaken)
}

func TestHandleEmptyRequest(t *testing.T) {
	h := newHarness(t, nil)

	reply, err := h.d.Handle(context.Background(), &message.Request{ID: "req-1"})

	require.NoError(t, err)
	assert.Equal(t, "req-1", reply.RequestID)
	assert.NotEmpty(t, reply.Error)
	assert.Empty(t, h.classifier.seen)
}

func TestStateReadableDuringCycle(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.classifier.result = intent.Screenshot("")
	})
	var seen []State
	opts := h.d.opts
	var d *Dispatcher
	opts.OnState = func(State) { seen = append(seen, d.State()) }
	d = New(opts)

	d.Run(context.Background(), "take a screenshot")

	assert.Equal(t, []State{Classifying, Executing, Composing, Done, Idle}, seen)
	assert.Equal(t, Idle, d.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "error_fallback", ErrorFallback.String())
	assert.Equal(t, "idle", Idle.String())
}
