package intent_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/intent"
)

func TestVolumeIsClamped(t *testing.T) {
	cases := map[int]int{-20: 0, 0: 0, 42: 42, 100: 100, 250: 100}
	for in, want := range cases {
		got := intent.Volume(in)
		assert.Equal(t, want, got.Level(), "level %d", in)
		assert.NoError(t, got.Validate())
	}
}

func TestZeroValueIsConversation(t *testing.T) {
	var i intent.Intent
	assert.Equal(t, intent.KindConversation, i.Kind())
	assert.False(t, i.IsAction())
}

func TestValidateMissingParameters(t *testing.T) {
	err := intent.OpenApp("  ").Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, intent.ErrMissingParameter))

	err = intent.TypeText("", 0, false).Validate()
	assert.True(t, errors.Is(err, intent.ErrMissingParameter))

	assert.NoError(t, intent.Screenshot("").Validate())
}

func TestTypeTextDefaultsAndFocus(t *testing.T) {
	i := intent.TypeText("hello", 0, false)
	assert.Equal(t, intent.DefaultTypeDelay, i.Delay())
	assert.False(t, i.FocusBrowser())

	focused := i.WithFocusBrowser()
	assert.True(t, focused.FocusBrowser())
	assert.False(t, i.FocusBrowser(), "original must stay unchanged")

	open := intent.OpenApp("Notes").WithFocusBrowser()
	assert.Equal(t, intent.KindOpenApp, open.Kind())
}

func TestFailureCarriesErrorText(t *testing.T) {
	out := intent.Failure(errors.New("permission denied"))
	assert.False(t, out.Succeeded)
	assert.Equal(t, "permission denied", out.Description)
	assert.Empty(t, out.ActionLabel)
}
