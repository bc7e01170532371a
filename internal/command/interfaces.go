package command

import (
	"context"

	"github.com/iocast/kiosk-agent/internal/settings"
)

// Display relays render instructions to the display surface.
// Send is fire-and-forget: delivery is not confirmed and a returned
// error only means the relay itself refused the message.
type Display interface {
	Send(command string, payload map[string]any) error
}

// System actuates host-level controls. Implementations translate
// these calls into whatever the platform offers (amixer, DPMS,
// systemctl, ...).
type System interface {
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, level int) error
	Muted(ctx context.Context) (bool, error)
	SetMute(ctx context.Context, muted bool) error
	Brightness(ctx context.Context) (int, error)
	SetBrightness(ctx context.Context, level int) error
	ScreenOn(ctx context.Context) error
	ScreenOff(ctx context.Context) error
	Reboot(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// EventPublisher emits fire-and-forget device events. Used for
// asynchronous command outcomes that must not produce a second ack.
type EventPublisher interface {
	PublishEvent(event string, data map[string]any)
}

// Rescheduler re-arms a schedule after its persisted definition
// changed.
type Rescheduler interface {
	Reschedule()
}

// Supervisor restarts a managed child process.
type Supervisor interface {
	Restart() error
}

// Collector produces a device telemetry snapshot. The currentURL hint
// is included when non-empty.
type Collector interface {
	Collect(currentURL string) map[string]any
}

// Settings is the slice of the settings store the handlers need.
// Satisfied by *settings.Store.
type Settings interface {
	StartURL(ctx context.Context) (string, error)
	SetStartURL(ctx context.Context, v string) error
	CurrentURL(ctx context.Context) (string, error)
	SetCurrentURL(ctx context.Context, v string) error
	KioskMode(ctx context.Context) (bool, error)
	SetKioskMode(ctx context.Context, v bool) error
	SetRebootSchedule(ctx context.Context, sched settings.RebootSchedule) error
}
