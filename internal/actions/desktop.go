package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/nagato/internal/config"
	"github.com/nadzzz/nagato/internal/heuristics"
	"github.com/nadzzz/nagato/internal/intent"
)

// ErrUnsupported is returned for actions the current OS cannot perform.
var ErrUnsupported = errors.New("not supported on this platform")

// Runner executes external commands.
type Runner interface {
	// Run waits for the command to finish.
	Run(ctx context.Context, name string, args ...string) error
	// Start launches the command without waiting for it.
	Start(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil
}

// Start implements Runner. The child is detached from ctx so the launched
// application outlives the command cycle.
func (ExecRunner) Start(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Desktop implements ComputerActions with the platform's command-line
// automation tools: open/osascript/screencapture on macOS,
// xdotool/pactl/gnome-screenshot on Linux and PowerShell SendKeys on Windows.
type Desktop struct {
	goos   string
	runner Runner
	sleep  func(context.Context, time.Duration) error
	now    func() time.Time
	cfg    config.ActionsConfig
}

// DesktopOption customizes a Desktop.
type DesktopOption func(*Desktop)

// WithRunner replaces the command runner.
func WithRunner(r Runner) DesktopOption { return func(d *Desktop) { d.runner = r } }

// WithOS overrides runtime.GOOS.
func WithOS(goos string) DesktopOption { return func(d *Desktop) { d.goos = goos } }

// WithSleep replaces the focus wait function.
func WithSleep(fn func(context.Context, time.Duration) error) DesktopOption {
	return func(d *Desktop) { d.sleep = fn }
}

// WithClock replaces the clock used for screenshot names.
func WithClock(now func() time.Time) DesktopOption { return func(d *Desktop) { d.now = now } }

// NewDesktop creates the OS automation backend.
func NewDesktop(cfg config.ActionsConfig, opts ...DesktopOption) *Desktop {
	d := &Desktop{
		goos:   runtime.GOOS,
		runner: ExecRunner{},
		sleep:  sleepContext,
		now:    time.Now,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OpenApplication launches name and waits for it to take focus. Browsers
// get a longer wait.
func (d *Desktop) OpenApplication(ctx context.Context, name string) (string, error) {
	var err error
	switch d.goos {
	case "darwin":
		err = d.runner.Start(ctx, "open", "-a", name)
	case "linux":
		err = d.runner.Start(ctx, linuxCommand(name))
	case "windows":
		err = d.runner.Start(ctx, "cmd", "/c", "start", "", name)
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}

	wait := d.cfg.AppLaunchWait
	if heuristics.IsBrowser(name) {
		wait = d.cfg.BrowserLaunchWait
	}
	if err := d.sleep(ctx, wait); err != nil {
		return "", err
	}
	return "Opened " + name, nil
}

// OpenNewBrowserTab presses the new-tab hotkey in the focused browser.
func (d *Desktop) OpenNewBrowserTab(ctx context.Context) (string, error) {
	if err := d.hotkey(ctx, "t"); err != nil {
		return "", fmt.Errorf("failed to open new tab: %w", err)
	}
	return "Opened new browser tab", nil
}

// FocusAddressBar presses the address-bar hotkey in the focused browser.
func (d *Desktop) FocusAddressBar(ctx context.Context) (string, error) {
	if err := d.hotkey(ctx, "l"); err != nil {
		return "", fmt.Errorf("failed to focus address bar: %w", err)
	}
	return "Focused browser address bar", nil
}

func (d *Desktop) hotkey(ctx context.Context, key string) error {
	if err := d.sleep(ctx, d.cfg.FocusWait); err != nil {
		return err
	}
	var err error
	switch d.goos {
	case "darwin":
		err = d.runner.Run(ctx, "osascript", "-e",
			fmt.Sprintf(`tell application "System Events" to keystroke %q using command down`, key))
	case "linux":
		err = d.runner.Run(ctx, "xdotool", "key", "--clearmodifiers", "ctrl+"+key)
	case "windows":
		err = d.runner.Run(ctx, "powershell", "-NoProfile", "-Command", sendKeys("^"+key))
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return err
	}
	return d.sleep(ctx, d.cfg.HotkeyWait)
}

// AdjustVolume sets the output volume. level is clamped to [0,100].
func (d *Desktop) AdjustVolume(ctx context.Context, level int) (string, error) {
	level = intent.ClampVolume(level)
	var err error
	switch d.goos {
	case "darwin":
		err = d.runner.Run(ctx, "osascript", "-e", fmt.Sprintf("set volume output volume %d", level))
	case "linux":
		err = d.runner.Run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", strconv.Itoa(level)+"%")
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return "", fmt.Errorf("failed to adjust volume: %w", err)
	}
	return fmt.Sprintf("Volume set to %d%%", level), nil
}

// TakeScreenshot captures the screen. An empty filename becomes
// <screenshot_dir>/screenshot_<unix>.png; the directory is created.
func (d *Desktop) TakeScreenshot(ctx context.Context, filename string) (string, error) {
	if filename == "" {
		dir := d.cfg.ScreenshotDir
		if dir == "" {
			dir = "screenshots"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to take screenshot: %w", err)
		}
		filename = filepath.Join(dir, fmt.Sprintf("screenshot_%d.png", d.now().Unix()))
	}

	var err error
	switch d.goos {
	case "darwin":
		err = d.runner.Run(ctx, "screencapture", "-x", filename)
	case "linux":
		err = d.runner.Run(ctx, "gnome-screenshot", "-f", filename)
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}
	return "Screenshot saved as " + filename, nil
}

// TypeText types text into the focused application, optionally after
// focusing the browser address bar. Return is pressed for browser input
// and for text that reads like a search.
func (d *Desktop) TypeText(ctx context.Context, text string, delay float64, focusBrowser bool) (string, error) {
	if err := d.sleep(ctx, d.cfg.FocusWait); err != nil {
		return "", err
	}
	if focusBrowser {
		if _, err := d.FocusAddressBar(ctx); err != nil {
			return "", fmt.Errorf("failed to type text: %w", err)
		}
	}
	if delay <= 0 {
		delay = intent.DefaultTypeDelay
	}

	var err error
	switch d.goos {
	case "darwin":
		err = d.runner.Run(ctx, "osascript", "-e", typeScript(text, delay))
	case "linux":
		err = d.runner.Run(ctx, "xdotool", "type", "--delay", strconv.Itoa(int(delay*1000)), "--", text)
	case "windows":
		err = d.runner.Run(ctx, "powershell", "-NoProfile", "-Command", sendKeys(escapeSendKeys(text)))
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return "", fmt.Errorf("failed to type text: %w", err)
	}

	if focusBrowser || heuristics.SubmitsTyping(text) {
		if err := d.sleep(ctx, d.cfg.SubmitWait); err != nil {
			return "", err
		}
		if err := d.pressReturn(ctx); err != nil {
			return "", fmt.Errorf("failed to submit text: %w", err)
		}
	}
	return "Typed the text: " + text, nil
}

func (d *Desktop) pressReturn(ctx context.Context) error {
	switch d.goos {
	case "darwin":
		return d.runner.Run(ctx, "osascript", "-e", `tell application "System Events" to key code 36`)
	case "linux":
		return d.runner.Run(ctx, "xdotool", "key", "Return")
	case "windows":
		return d.runner.Run(ctx, "powershell", "-NoProfile", "-Command", sendKeys("{ENTER}"))
	}
	return ErrUnsupported
}

// linuxCommand maps display names to their usual executables.
func linuxCommand(name string) string {
	switch strings.ToLower(name) {
	case "chrome", "google chrome":
		return "google-chrome"
	case "edge", "microsoft edge":
		return "microsoft-edge"
	case "brave":
		return "brave-browser"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// typeScript builds an AppleScript that types text one character at a
// time with delay seconds between keystrokes.
func typeScript(text string, delay float64) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
	return fmt.Sprintf(`tell application "System Events"
repeat with c in characters of "%s"
keystroke c
delay %s
end repeat
end tell`, escaped, strconv.FormatFloat(delay, 'f', -1, 64))
}

func sendKeys(keys string) string {
	return fmt.Sprintf(`(New-Object -ComObject WScript.Shell).SendKeys('%s')`, strings.ReplaceAll(keys, "'", "''"))
}

// escapeSendKeys quotes the characters SendKeys treats as modifiers.
func escapeSendKeys(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '+', '^', '%', '~', '(', ')', '{', '}', '[', ']':
			b.WriteString("{" + string(r) + "}")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
