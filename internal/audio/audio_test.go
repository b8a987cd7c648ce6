package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nagato/internal/config"
)

func TestEncodeWAV(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	wav := EncodeWAV(pcm, 22050, 1, 2)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(22050), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}

func TestRecorderInvokesRec(t *testing.T) {
	rec := NewRecorder(config.AudioConfig{Duration: 3 * time.Second, TempDir: t.TempDir()})
	var got []string
	rec.run = func(_ context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		// The output path comes right before "trim".
		return os.WriteFile(args[len(args)-4], []byte("RIFFdata"), 0o600)
	}

	data, err := rec.Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), data)
	assert.Equal(t, "rec", got[0])
	assert.Equal(t, "16000", got[3])
	assert.Equal(t, []string{"trim", "0", "3"}, got[len(got)-3:])
}

func TestRecorderError(t *testing.T) {
	rec := NewRecorder(config.AudioConfig{TempDir: t.TempDir()})
	rec.run = func(context.Context, string, ...string) error { return errors.New("no device") }
	_, err := rec.Record(context.Background())
	assert.ErrorContains(t, err, "no device")
}

func TestPlayerPicksProgram(t *testing.T) {
	installed := map[string]bool{"aplay": true}
	p := &Player{
		tempDir:  t.TempDir(),
		goos:     "linux",
		lookPath: func(n string) (string, error) {
			if installed[n] {
				return "/usr/bin/" + n, nil
			}
			return "", errors.New("not found")
		},
	}
	var played string
	p.run = func(_ context.Context, name string, args ...string) error {
		played = name + " " + strings.Join(args, " ")
		return nil
	}

	require.NoError(t, p.Play(context.Background(), []byte("RIFF"), ".wav"))
	assert.True(t, strings.HasPrefix(played, "aplay "))

	assert.ErrorIs(t, p.Play(context.Background(), []byte("ID3"), ".mp3"), ErrNoPlayer)

	p.goos = "darwin"
	installed["afplay"] = true
	require.NoError(t, p.Play(context.Background(), []byte("ID3"), ".mp3"))
	assert.True(t, strings.HasPrefix(played, "afplay "))
}
