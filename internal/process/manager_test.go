package process

import (
	"errors"
	"testing"
	"time"
)

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{
		Binary: "/usr/bin/kiosk-renderer",
		Args:   []string{"--fullscreen"},
	})

	if m.config.Name != "renderer" {
		t.Errorf("Name = %q, want %q", m.config.Name, "renderer")
	}
	if m.config.RestartDelay != 5*time.Second {
		t.Errorf("RestartDelay = %v, want %v", m.config.RestartDelay, 5*time.Second)
	}
	if m.config.GracefulTimeout != 10*time.Second {
		t.Errorf("GracefulTimeout = %v, want %v", m.config.GracefulTimeout, 10*time.Second)
	}
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(Config{
		Name:   "test",
		Binary: "/bin/true",
	})

	if m.Status() != StatusStopped {
		t.Errorf("initial Status() = %q, want %q", m.Status(), StatusStopped)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if m.PID() != 0 {
		t.Errorf("PID() = %d, want 0", m.PID())
	}
	if m.RestartCount() != 0 {
		t.Errorf("RestartCount() = %d, want 0", m.RestartCount())
	}
	if m.Uptime() != 0 {
		t.Errorf("Uptime() = %v, want 0", m.Uptime())
	}
}

func TestManager_StartMissingBinary(t *testing.T) {
	m := NewManager(Config{
		Name:   "missing",
		Binary: "/nonexistent/renderer",
	})

	if err := m.Start(); err == nil {
		t.Fatal("Start() error = nil, want error for missing binary")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}

func TestManager_StartAndStop(t *testing.T) {
	m := NewManager(Config{
		Name:            "sleeper",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}
	if m.PID() == 0 {
		t.Error("PID() = 0 after Start()")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q after Stop(), want %q", m.Status(), StatusStopped)
	}
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(Config{
		Name:   "sleeper",
		Binary: "/bin/sleep",
		Args:   []string{"60"},
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	if err := m.Start(); err == nil {
		t.Error("second Start() error = nil, want already-running error")
	}
}

func TestManager_Send(t *testing.T) {
	// cat sits on stdin until we close it, making it a convenient
	// stand-in for a renderer reading instructions.
	m := NewManager(Config{
		Name:            "cat",
		Binary:          "/bin/cat",
		GracefulTimeout: 2 * time.Second,
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	if err := m.Send([]byte(`{"command":"reload"}`)); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestManager_SendNotRunning(t *testing.T) {
	m := NewManager(Config{
		Name:   "stopped",
		Binary: "/bin/cat",
	})

	if err := m.Send([]byte("{}")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Send() error = %v, want ErrNotRunning", err)
	}
}

func TestManager_RestartOnFailure(t *testing.T) {
	m := NewManager(Config{
		Name:               "flaky",
		Binary:             "/bin/true", // exits immediately
		RestartOnFailure:   true,
		RestartDelay:       10 * time.Millisecond,
		MaxRestartAttempts: 2,
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.RestartCount() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("RestartCount() = %d, want >= 2", m.RestartCount())
}

func TestManager_Restart(t *testing.T) {
	m := NewManager(Config{
		Name:            "sleeper",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	oldPID := m.PID()
	if err := m.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if !m.IsRunning() {
		t.Error("IsRunning() = false after Restart()")
	}
	if m.PID() == oldPID {
		t.Error("PID unchanged after Restart()")
	}
}

func TestRelay_Send(t *testing.T) {
	m := NewManager(Config{
		Name:            "cat",
		Binary:          "/bin/cat",
		GracefulTimeout: 2 * time.Second,
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	relay := NewRelay(m)
	if err := relay.Send("loadUrl", map[string]any{"url": "https://screen.example/a"}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestRelay_SendNotRunning(t *testing.T) {
	relay := NewRelay(NewManager(Config{Name: "down", Binary: "/bin/cat"}))

	if err := relay.Send("reload", nil); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Send() error = %v, want ErrNotRunning", err)
	}
}
