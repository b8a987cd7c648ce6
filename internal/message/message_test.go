package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailedNeverCarriesAction(t *testing.T) {
	r := Failed("That didn't work: boom", "That didn't work: boom")
	assert.False(t, r.Success)
	assert.Empty(t, r.ActionTaken)
	assert.Equal(t, r.Message, r.SpokenForm())
}

func TestSpokenAndDisplayForms(t *testing.T) {
	r := Succeeded("Got it! Opened Safari", "Opened Safari", "")
	assert.Equal(t, "Got it! Opened Safari Opened Safari", r.SpokenForm())
	assert.Equal(t, "Got it! Opened Safari\nOpened Safari", r.DisplayText())
}

func TestEnsureID(t *testing.T) {
	req := &Request{Text: "open notes"}
	req.EnsureID()
	assert.NotEmpty(t, req.ID)
	assert.False(t, req.Timestamp.IsZero())

	id := req.ID
	req.EnsureID()
	assert.Equal(t, id, req.ID)
}
