// Package system actuates host-level controls through the standard
// Linux command-line tools: amixer for audio, brightnessctl for the
// backlight, xset for DPMS power state and systemctl for power
// actions. Each call shells out and parses the tool's output, so the
// package works unmodified on any kiosk image that ships those
// binaries.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Tool invocation budget. Host tools answer in milliseconds; anything
// slower indicates a wedged audio or display stack and the caller's
// dispatch deadline should not be burned waiting for it.
const execTimeout = 5 * time.Second

// Actuator drives the host via external commands. The zero value is
// not usable; construct with New.
type Actuator struct {
	logger Logger

	// runner is swappable for tests.
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Logger is the optional logging interface.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// New creates an actuator that runs the real host tools.
func New() *Actuator {
	return &Actuator{
		logger: noopLogger{},
		runner: runCommand,
	}
}

// SetLogger sets the logger. Safe to call before use; not safe
// concurrently with actuation.
func (a *Actuator) SetLogger(l Logger) {
	if l != nil {
		a.logger = l
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Volume returns the Master channel level as a percentage.
func (a *Actuator) Volume(ctx context.Context) (int, error) {
	out, err := a.runner(ctx, "amixer", "get", "Master")
	if err != nil {
		return 0, fmt.Errorf("reading volume: %w", err)
	}
	level, _, err := parseAmixer(string(out))
	if err != nil {
		return 0, fmt.Errorf("reading volume: %w", err)
	}
	return level, nil
}

// SetVolume sets the Master channel level. The caller validates range.
func (a *Actuator) SetVolume(ctx context.Context, level int) error {
	_, err := a.runner(ctx, "amixer", "set", "Master", strconv.Itoa(level)+"%")
	if err != nil {
		return fmt.Errorf("setting volume: %w", err)
	}
	a.logger.Debug("volume set", "level", level)
	return nil
}

// Muted reports whether the Master channel is muted.
func (a *Actuator) Muted(ctx context.Context) (bool, error) {
	out, err := a.runner(ctx, "amixer", "get", "Master")
	if err != nil {
		return false, fmt.Errorf("reading mute state: %w", err)
	}
	_, muted, err := parseAmixer(string(out))
	if err != nil {
		return false, fmt.Errorf("reading mute state: %w", err)
	}
	return muted, nil
}

// SetMute mutes or unmutes the Master channel.
func (a *Actuator) SetMute(ctx context.Context, muted bool) error {
	arg := "unmute"
	if muted {
		arg = "mute"
	}
	if _, err := a.runner(ctx, "amixer", "set", "Master", arg); err != nil {
		return fmt.Errorf("setting mute: %w", err)
	}
	a.logger.Debug("mute set", "muted", muted)
	return nil
}

// Brightness returns the backlight level as a percentage.
func (a *Actuator) Brightness(ctx context.Context) (int, error) {
	out, err := a.runner(ctx, "brightnessctl", "get", "-P")
	if err != nil {
		return 0, fmt.Errorf("reading brightness: %w", err)
	}
	level, err := parseBrightness(string(out))
	if err != nil {
		return 0, fmt.Errorf("reading brightness: %w", err)
	}
	return level, nil
}

// SetBrightness sets the backlight level. The caller validates range.
func (a *Actuator) SetBrightness(ctx context.Context, level int) error {
	_, err := a.runner(ctx, "brightnessctl", "set", strconv.Itoa(level)+"%")
	if err != nil {
		return fmt.Errorf("setting brightness: %w", err)
	}
	a.logger.Debug("brightness set", "level", level)
	return nil
}

// ScreenOn forces the display out of DPMS standby.
func (a *Actuator) ScreenOn(ctx context.Context) error {
	if _, err := a.runner(ctx, "xset", "dpms", "force", "on"); err != nil {
		return fmt.Errorf("turning screen on: %w", err)
	}
	return nil
}

// ScreenOff forces the display into DPMS off.
func (a *Actuator) ScreenOff(ctx context.Context) error {
	if _, err := a.runner(ctx, "xset", "dpms", "force", "off"); err != nil {
		return fmt.Errorf("turning screen off: %w", err)
	}
	return nil
}

// Reboot restarts the host.
func (a *Actuator) Reboot(ctx context.Context) error {
	a.logger.Warn("rebooting host")
	if _, err := a.runner(ctx, "systemctl", "reboot"); err != nil {
		return fmt.Errorf("rebooting: %w", err)
	}
	return nil
}

// Shutdown powers the host off.
func (a *Actuator) Shutdown(ctx context.Context) error {
	a.logger.Warn("shutting down host")
	if _, err := a.runner(ctx, "systemctl", "poweroff"); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// amixer prints per-channel lines like:
//
//	Front Left: Playback 52428 [80%] [on]
//
// The first line carrying a percentage decides both level and mute
// state.
var (
	amixerLevel = regexp.MustCompile(`\[(\d{1,3})%\]`)
	amixerMute  = regexp.MustCompile(`\[(on|off)\]`)
)

func parseAmixer(out string) (level int, muted bool, err error) {
	for _, line := range strings.Split(out, "\n") {
		m := amixerLevel.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level, err = strconv.Atoi(m[1])
		if err != nil {
			return 0, false, fmt.Errorf("parsing amixer level %q: %w", m[1], err)
		}
		if s := amixerMute.FindStringSubmatch(line); s != nil {
			muted = s[1] == "off"
		}
		return level, muted, nil
	}
	return 0, false, fmt.Errorf("no volume level in amixer output")
}

// brightnessctl -P prints a bare percentage, e.g. "80%".
func parseBrightness(out string) (int, error) {
	s := strings.TrimSuffix(strings.TrimSpace(out), "%")
	level, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parsing brightnessctl output %q: %w", strings.TrimSpace(out), err)
	}
	return level, nil
}
