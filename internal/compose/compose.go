// Package compose turns an executed intent into the message shown and
// spoken to the user.
package compose

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/nagato/internal/intent"
	"github.com/nadzzz/nagato/internal/message"
)

// NotSure is the reply for commands that map to no action.
const NotSure = "I'm not quite sure how to help with that yet."

// Templates keyed by intent kind; "{}" is replaced by the outcome description.
var (
	openTemplates = []string{
		"Got it! {}",
		"Sure thing! {}",
		"On it! {}",
		"No problem! {}",
	}
	volumeTemplates = []string{
		"All set! {}",
		"Done! {}",
		"There you go! {}",
		"Got it! {}",
	}
	screenshotTemplates = []string{
		"Captured! {}",
		"Got that! {}",
		"Snap! {}",
		"Done! {}",
	}
	typeTemplates = []string{
		"Just did that for you!",
		"All typed up!",
		"Done and done!",
		"Taken care of!",
	}
	errorTemplates = []string{
		"Oops! Something went wrong: {}",
		"That didn't work: {}",
		"I ran into a problem: {}",
		"Sorry about that: {}",
	}
)

// Composer picks phrasing at random. It is safe for concurrent use.
type Composer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	voice bool
}

// New creates a composer. rng may be nil, in which case a time-seeded
// source is used; tests pass a fixed seed. When voice is false responses
// carry no voice feedback.
func New(rng *rand.Rand, voice bool) *Composer {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>32|1))
	}
	return &Composer{rng: rng, voice: voice}
}

// VoiceEnabled reports whether responses carry voice feedback.
func (c *Composer) VoiceEnabled() bool { return c.voice }

// Compose builds the response for an intent of kind whose action produced out.
func (c *Composer) Compose(kind intent.Kind, out intent.ActionOutcome) message.AssistantResponse {
	if kind == intent.KindConversation {
		return message.Failed(NotSure, c.spoken(NotSure))
	}
	if !out.Succeeded {
		return c.Failure(out.Description)
	}

	var msg string
	switch kind {
	case intent.KindOpenApp:
		msg = fill(c.pick(openTemplates), out.Description)
	case intent.KindVolume:
		msg = fill(c.pick(volumeTemplates), out.Description)
	case intent.KindScreenshot:
		msg = fill(c.pick(screenshotTemplates), out.Description)
	case intent.KindTypeText:
		msg = c.pick(typeTemplates)
	default:
		return message.Failed(NotSure, c.spoken(NotSure))
	}

	r := message.Succeeded(msg, out.ActionLabel, "")
	r.VoiceFeedback = c.spoken(r.SpokenForm())
	return r
}

// Failure builds an error-phrased response around cause.
func (c *Composer) Failure(cause string) message.AssistantResponse {
	msg := fill(c.pick(errorTemplates), cause)
	return message.Failed(msg, c.spoken(msg))
}

// Plain builds a failed response carrying text verbatim, used for the
// conversational fallback reply.
func (c *Composer) Plain(text string) message.AssistantResponse {
	return message.Failed(text, c.spoken(text))
}

func (c *Composer) spoken(s string) string {
	if !c.voice {
		return ""
	}
	return s
}

func (c *Composer) pick(options []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return options[c.rng.IntN(len(options))]
}

func fill(template, desc string) string {
	return strings.Replace(template, "{}", desc, 1)
}
