package compose

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/intent"
)

func seeded() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestComposeSuccessVoiceMatchesDisplay(t *testing.T) {
	c := New(seeded(), true)
	cases := []struct {
		kind intent.Kind
		out  intent.ActionOutcome
	}{
		{intent.KindOpenApp, intent.Success("Opened Safari", "Opened Safari")},
		{intent.KindVolume, intent.Success("Volume set to 40%", "Volume set to 40%")},
		{intent.KindScreenshot, intent.Success("Screenshot saved as a.png", "Screenshot saved")},
		{intent.KindTypeText, intent.Success("Typed the text: hi", "Typed: hi")},
	}
	for _, tc := range cases {
		for range 20 {
			r := c.Compose(tc.kind, tc.out)
			require.True(t, r.Success)
			assert.Equal(t, tc.out.ActionLabel, r.ActionTaken)
			assert.Equal(t, r.Message+" "+r.ActionTaken, r.VoiceFeedback)
			if tc.kind != intent.KindTypeText {
				assert.Contains(t, r.Message, tc.out.Description)
			}
		}
	}
}

func TestComposeFailureHasNoAction(t *testing.T) {
	c := New(seeded(), true)
	for range 20 {
		r := c.Compose(intent.KindOpenApp, intent.ActionOutcome{Description: "permission denied", ActionLabel: "Opened X"})
		assert.False(t, r.Success)
		assert.Empty(t, r.ActionTaken)
		assert.Contains(t, r.Message, "permission denied")
		assert.Equal(t, r.Message, r.VoiceFeedback)
	}
}

func TestComposeConversation(t *testing.T) {
	r := New(seeded(), true).Compose(intent.KindConversation, intent.Success("", ""))
	assert.False(t, r.Success)
	assert.Equal(t, NotSure, r.Message)
	assert.Equal(t, NotSure, r.VoiceFeedback)
	assert.Empty(t, r.ActionTaken)
}

func TestComposeVoiceDisabled(t *testing.T) {
	c := New(seeded(), false)
	r := c.Compose(intent.KindVolume, intent.Success("Volume set to 10%", "Volume set to 10%"))
	assert.Empty(t, r.VoiceFeedback)
	assert.Empty(t, c.Failure("x").VoiceFeedback)
}

func TestComposeDeterministicWithSeed(t *testing.T) {
	a, b := New(seeded(), true), New(seeded(), true)
	out := intent.Success("Opened Notes", "Opened Notes")
	for range 10 {
		assert.Equal(t, a.Compose(intent.KindOpenApp, out), b.Compose(intent.KindOpenApp, out))
	}
}

func TestComposeUsesEveryTemplate(t *testing.T) {
	c := New(seeded(), false)
	seen := map[string]bool{}
	for range 200 {
		msg := c.Compose(intent.KindOpenApp, intent.Success("X", "Opened X")).Message
		seen[strings.TrimSuffix(msg, " X")] = true
	}
	assert.Len(t, seen, len(openTemplates))
}
