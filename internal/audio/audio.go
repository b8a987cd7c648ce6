package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/nadzzz/nagato/internal/config"
)

// ErrNoPlayer is returned when no supported audio player is installed.
var ErrNoPlayer = errors.New("no audio player found (install sox, or use afplay/aplay)")

// CommandFunc runs an external program to completion.
type CommandFunc func(ctx context.Context, name string, args ...string) error

// LookPathFunc resolves a program name.
type LookPathFunc func(name string) (string, error)

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

// Recorder captures a fixed-length clip from the default microphone with
// sox's rec front end.
type Recorder struct {
	sampleRate int
	channels   int
	duration   time.Duration
	tempDir    string
	run        CommandFunc
}

// NewRecorder creates a recorder from config.
func NewRecorder(cfg config.AudioConfig) *Recorder {
	r := &Recorder{
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		duration:   cfg.Duration,
		tempDir:    cfg.TempDir,
		run:        runCommand,
	}
	if r.sampleRate <= 0 {
		r.sampleRate = 16000
	}
	if r.channels <= 0 {
		r.channels = 1
	}
	if r.duration <= 0 {
		r.duration = 5 * time.Second
	}
	return r
}

// Record captures one clip and returns it as WAV bytes.
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	f, err := os.CreateTemp(r.tempDir, "nagato-rec-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	secs := strconv.FormatFloat(r.duration.Seconds(), 'f', -1, 64)
	slog.Debug("recording", "seconds", secs, "rate", r.sampleRate)
	err = r.run(ctx, "rec", "-q",
		"-r", strconv.Itoa(r.sampleRate),
		"-c", strconv.Itoa(r.channels),
		"-b", "16",
		path,
		"trim", "0", secs,
	)
	if err != nil {
		return nil, fmt.Errorf("recording audio: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	return data, nil
}

// Player plays audio clips with afplay (macOS), play (sox) or aplay (ALSA,
// WAV only).
type Player struct {
	tempDir  string
	goos     string
	run      CommandFunc
	lookPath LookPathFunc
}

// NewPlayer creates a player writing temp clips into tempDir ("" for the
// system default).
func NewPlayer(tempDir string) *Player {
	return &Player{tempDir: tempDir, goos: runtime.GOOS, run: runCommand, lookPath: exec.LookPath}
}

// Play writes clip to a temp file and blocks until playback ends.
func (p *Player) Play(ctx context.Context, clip []byte, ext string) error {
	prog, err := p.program(ext)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(p.tempDir, "nagato-speech-*"+ext)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(clip); err != nil {
		f.Close()
		return fmt.Errorf("writing clip: %w", err)
	}
	f.Close()

	args := []string{path}
	if prog == "play" {
		args = []string{"-q", path}
	}
	return p.run(ctx, prog, args...)
}

func (p *Player) program(ext string) (string, error) {
	candidates := []string{"play"}
	switch {
	case p.goos == "darwin":
		candidates = []string{"afplay", "play"}
	case ext == ".wav":
		candidates = []string{"play", "aplay"}
	}
	for _, c := range candidates {
		if _, err := p.lookPath(c); err == nil {
			return c, nil
		}
	}
	return "", ErrNoPlayer
}
