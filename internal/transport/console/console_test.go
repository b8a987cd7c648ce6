package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/message"
)

func TestREPL(t *testing.T) {
	var out bytes.Buffer
	var seen []string
	c := New("> ", "Nagato", WithIO(strings.NewReader("open safari\n\n   \nbad\nexit\nnever reached\n"), &out))

	err := c.Listen(context.Background(), func(_ context.Context, req *message.Request) (*message.Reply, error) {
		assert.Equal(t, "console", req.Source)
		seen = append(seen, req.Text)
		if req.Text == "bad" {
			return nil, errors.New("backend down")
		}
		return &message.Reply{Text: "Got it! Opened Safari"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"open safari", "bad"}, seen)
	assert.Contains(t, out.String(), "Nagato: Got it! Opened Safari")
	assert.Contains(t, out.String(), "error: backend down")
}

func TestREPLEndsAtEOF(t *testing.T) {
	var out bytes.Buffer
	c := New("> ", "Nagato", WithIO(strings.NewReader("hello"), &out))

	err := c.Listen(context.Background(), func(context.Context, *message.Request) (*message.Reply, error) {
		return &message.Reply{Error: "request has no audio and no text"}, nil
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "error: request has no audio and no text")
}
