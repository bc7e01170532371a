package system

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const amixerSample = `Simple mixer control 'Master',0
  Capabilities: pvolume pswitch pswitch-joined
  Playback channels: Front Left - Front Right
  Limits: Playback 0 - 65536
  Mono:
  Front Left: Playback 52428 [80%] [on]
  Front Right: Playback 52428 [80%] [on]
`

const amixerMutedSample = `Simple mixer control 'Master',0
  Capabilities: pvolume pswitch pswitch-joined
  Mono: Playback 0 [0%] [off]
`

func TestParseAmixer(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		wantLevel int
		wantMuted bool
		wantErr   bool
	}{
		{"stereo unmuted", amixerSample, 80, false, false},
		{"mono muted", amixerMutedSample, 0, true, false},
		{"no percentage", "Simple mixer control 'Master',0\n", 0, false, true},
		{"empty", "", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, muted, err := parseAmixer(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAmixer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if level != tt.wantLevel {
				t.Errorf("parseAmixer() level = %d, want %d", level, tt.wantLevel)
			}
			if muted != tt.wantMuted {
				t.Errorf("parseAmixer() muted = %v, want %v", muted, tt.wantMuted)
			}
		})
	}
}

func TestParseBrightness(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    int
		wantErr bool
	}{
		{"plain", "80%", 80, false},
		{"trailing newline", "42%\n", 42, false},
		{"no percent sign", "100\n", 100, false},
		{"garbage", "not a number", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBrightness(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBrightness() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseBrightness() = %d, want %d", got, tt.want)
			}
		})
	}
}

// fakeRunner records invocations and returns canned output.
type fakeRunner struct {
	calls [][]string
	out   []byte
	err   error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.out, f.err
}

func newTestActuator(r *fakeRunner) *Actuator {
	a := New()
	a.runner = r.run
	return a
}

func TestVolume(t *testing.T) {
	r := &fakeRunner{out: []byte(amixerSample)}
	a := newTestActuator(r)

	level, err := a.Volume(context.Background())
	if err != nil {
		t.Fatalf("Volume() error = %v", err)
	}
	if level != 80 {
		t.Errorf("Volume() = %d, want 80", level)
	}
	if len(r.calls) != 1 || strings.Join(r.calls[0], " ") != "amixer get Master" {
		t.Errorf("unexpected invocation: %v", r.calls)
	}
}

func TestSetVolume(t *testing.T) {
	r := &fakeRunner{}
	a := newTestActuator(r)

	if err := a.SetVolume(context.Background(), 65); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if len(r.calls) != 1 || strings.Join(r.calls[0], " ") != "amixer set Master 65%" {
		t.Errorf("unexpected invocation: %v", r.calls)
	}
}

func TestSetMute(t *testing.T) {
	tests := []struct {
		muted bool
		want  string
	}{
		{true, "amixer set Master mute"},
		{false, "amixer set Master unmute"},
	}

	for _, tt := range tests {
		r := &fakeRunner{}
		a := newTestActuator(r)
		if err := a.SetMute(context.Background(), tt.muted); err != nil {
			t.Fatalf("SetMute(%v) error = %v", tt.muted, err)
		}
		if strings.Join(r.calls[0], " ") != tt.want {
			t.Errorf("SetMute(%v) ran %v, want %q", tt.muted, r.calls[0], tt.want)
		}
	}
}

func TestScreenControls(t *testing.T) {
	r := &fakeRunner{}
	a := newTestActuator(r)

	if err := a.ScreenOn(context.Background()); err != nil {
		t.Fatalf("ScreenOn() error = %v", err)
	}
	if err := a.ScreenOff(context.Background()); err != nil {
		t.Fatalf("ScreenOff() error = %v", err)
	}

	want := []string{"xset dpms force on", "xset dpms force off"}
	for i, w := range want {
		if strings.Join(r.calls[i], " ") != w {
			t.Errorf("call %d = %v, want %q", i, r.calls[i], w)
		}
	}
}

func TestRunnerErrorWrapped(t *testing.T) {
	r := &fakeRunner{err: errors.New("exec: \"amixer\": executable file not found")}
	a := newTestActuator(r)

	if _, err := a.Volume(context.Background()); err == nil {
		t.Fatal("Volume() error = nil, want error")
	}
	if err := a.SetBrightness(context.Background(), 50); err == nil {
		t.Fatal("SetBrightness() error = nil, want error")
	}
}
