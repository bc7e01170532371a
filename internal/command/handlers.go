package command

import (
	"context"
	"net"
	"time"

	"github.com/iocast/kiosk-agent/internal/settings"
)

const (
	// powerActionDelay gives the ack publish a head start before the
	// host reboots or shuts down underneath the session.
	powerActionDelay = 2 * time.Second

	pingTimeout = 5 * time.Second

	maxVolume     = 100
	maxBrightness = 100
	maxHour       = 23
	maxMinute     = 59
)

// Handlers bundles the collaborators the command set acts on and
// registers one handler per supported command.
type Handlers struct {
	Display    Display
	System     System
	Settings   Settings
	Collector  Collector
	Events     EventPublisher
	Reboots    Rescheduler
	Supervisor Supervisor
	Shell      *ShellRunner
	Updater    *Updater
	Logger     Logger
}

// RegisterAll registers the full command set on the dispatcher.
func (h *Handlers) RegisterAll(d *Dispatcher) {
	if h.Logger == nil {
		h.Logger = noopLogger{}
	}

	// Display relay.
	d.Register("loadUrl", h.loadURL)
	d.Register("loadStartUrl", h.loadStartURL)
	d.Register("reload", h.relay("reload"))
	d.Register("goBack", h.relay("goBack"))
	d.Register("goForward", h.relay("goForward"))
	d.Register("screenshot", h.relay("screenshot"))
	d.Register("clearCache", h.relay("clearCache"))

	// Settings.
	d.Register("setStartUrl", h.setStartURL)
	d.Register("setKioskMode", h.setKioskMode)
	d.Register("getKioskMode", h.getKioskMode)

	// System actuator.
	d.Register("setVolume", h.setVolume)
	d.Register("getVolume", h.getVolume)
	d.Register("setMute", h.setMute)
	d.Register("getMute", h.getMute)
	d.Register("setBrightness", h.setBrightness)
	d.Register("getBrightness", h.getBrightness)
	d.Register("screenOn", h.screenOn)
	d.Register("screenOff", h.screenOff)
	d.Register("reboot", h.reboot)
	d.Register("shutdown", h.shutdown)

	// Diagnostics.
	d.Register("getInfo", h.getInfo)
	d.Register("getStorage", h.getStorage)
	d.Register("ping", h.ping)

	// Shell.
	d.Register("runShell", h.runShell)

	// Scheduling.
	d.Register("scheduleReboot", h.scheduleReboot)
	d.Register("cancelScheduledReboot", h.cancelScheduledReboot)

	// Lifecycle.
	d.Register("restartApp", h.restartApp)
	d.Register("update", h.update)
}

// relay returns a handler that forwards the command to the display
// surface unchanged.
func (h *Handlers) relay(name string) Handler {
	return func(_ context.Context, payload map[string]any) Result {
		if err := h.Display.Send(name, payload); err != nil {
			return Failf("Error: %v", err)
		}
		return OK(name + " sent")
	}
}

func (h *Handlers) loadURL(ctx context.Context, payload map[string]any) Result {
	url, ok := stringField(payload, "url")
	if !ok || url == "" {
		return Fail("Missing url parameter")
	}

	if err := h.Display.Send("loadUrl", map[string]any{"url": url}); err != nil {
		return Failf("Error: %v", err)
	}
	if err := h.Settings.SetCurrentURL(ctx, url); err != nil {
		h.Logger.Warn("persisting current url failed", "error", err)
	}

	return OK("Loading " + url)
}

func (h *Handlers) loadStartURL(ctx context.Context, _ map[string]any) Result {
	url, err := h.Settings.StartURL(ctx)
	if err != nil {
		return Failf("Error: %v", err)
	}
	if url == "" {
		return Fail("Missing start URL, device not configured")
	}

	if err := h.Display.Send("loadUrl", map[string]any{"url": url}); err != nil {
		return Failf("Error: %v", err)
	}
	if err := h.Settings.SetCurrentURL(ctx, url); err != nil {
		h.Logger.Warn("persisting current url failed", "error", err)
	}

	return OK("Loading " + url)
}

func (h *Handlers) setStartURL(ctx context.Context, payload map[string]any) Result {
	url, ok := stringField(payload, "url")
	if !ok || url == "" {
		return Fail("Missing url parameter")
	}

	if err := h.Settings.SetStartURL(ctx, url); err != nil {
		return Failf("Error: %v", err)
	}
	return OK("Start URL set to " + url)
}

func (h *Handlers) setKioskMode(ctx context.Context, payload map[string]any) Result {
	enabled, ok := boolField(payload, "enabled")
	if !ok {
		return Fail("Missing enabled parameter")
	}

	if err := h.Settings.SetKioskMode(ctx, enabled); err != nil {
		return Failf("Error: %v", err)
	}
	if err := h.Display.Send("setKioskMode", map[string]any{"enabled": enabled}); err != nil {
		h.Logger.Warn("relaying kiosk mode failed", "error", err)
	}

	return OKData("Kiosk mode updated", map[string]any{"enabled": enabled})
}

func (h *Handlers) getKioskMode(ctx context.Context, _ map[string]any) Result {
	enabled, err := h.Settings.KioskMode(ctx)
	if err != nil {
		return Failf("Error: %v", err)
	}
	return OKData("Kiosk mode", map[string]any{"enabled": enabled})
}

func (h *Handlers) setVolume(ctx context.Context, payload map[string]any) Result {
	level, ok := intField(payload, "level")
	if !ok {
		return Fail("Missing level parameter")
	}
	if level < 0 || level > maxVolume {
		return Failf("Invalid level %d, must be 0-%d", level, maxVolume)
	}

	if err := h.System.SetVolume(ctx, level); err != nil {
		return Failf("Error: %v", err)
	}
	return OKData("Volume set", map[string]any{"level": level})
}

func (h *Handlers) getVolume(ctx context.Context, _ map[string]any) Result {
	level, err := h.System.Volume(ctx)
	if err != nil {
		return Failf("Error: %v", err)
	}
	return OKData("Volume", map[string]any{"level": level})
}

func (h *Handlers) setMute(ctx context.Context, payload map[string]any) Result {
	muted, ok := boolField(payload, "muted")
	if !ok {
		return Fail("Missing muted parameter")
	}

	if err := h.System.SetMute(ctx, muted); err != nil {
		return Failf("Error: %v", err)
	}
	return OKData("Mute updated", map[string]any{"muted": muted})
}

func (h *Handlers) getMute(ctx context.Context, _ map[string]any) Result {
	muted, err := h.System.Muted(ctx)
	if err != nil {
		return Failf("Error: %v", err)
	}
	return OKData("Mute", map[string]any{"muted": muted})
}

func (h *Handlers) setBrightness(ctx context.Context, payload map[string]any) Result {
	level, ok := intField(payload, "level")
	if !ok {
		return Fail("Missing level parameter")
	}
	if level < 0 || level > maxBrightness {
		return Failf("Invalid level %d, must be 0-%d", level, maxBrightness)
	}

	if err := h.System.SetBrightness(ctx, level); err != nil {
		return Failf("Error: %v", err)
	}
	return OKData("Brightness set", map[string]any{"level": level})
}

func (h *Handlers) getBrightness(ctx context.Context, _ map[string]any) Result {
	level, err := h.System.Brightness(ctx)
	if err != nil {
		return Failf("Error: %v", err)
	}
	return OKData("Brightness", map[string]any{"level": level})
}

func (h *Handlers) screenOn(ctx context.Context, _ map[string]any) Result {
	if err := h.System.ScreenOn(ctx); err != nil {
		return Failf("Error: %v", err)
	}
	return OK("Screen on")
}

func (h *Handlers) screenOff(ctx context.Context, _ map[string]any) Result {
	if err := h.System.ScreenOff(ctx); err != nil {
		return Failf("Error: %v", err)
	}
	return OK("Screen off")
}

// reboot acks first, then reboots after a short delay so the ack has
// a chance to leave the device.
func (h *Handlers) reboot(_ context.Context, _ map[string]any) Result {
	go func() {
		time.Sleep(powerActionDelay)
		if err := h.System.Reboot(context.Background()); err != nil {
			h.Logger.Error("reboot failed", "error", err)
			h.Events.PublishEvent("rebootFailed", map[string]any{"error": err.Error()})
		}
	}()
	return OK("Rebooting")
}

func (h *Handlers) shutdown(_ context.Context, _ map[string]any) Result {
	go func() {
		time.Sleep(powerActionDelay)
		if err := h.System.Shutdown(context.Background()); err != nil {
			h.Logger.Error("shutdown failed", "error", err)
			h.Events.PublishEvent("shutdownFailed", map[string]any{"error": err.Error()})
		}
	}()
	return OK("Shutting down")
}

func (h *Handlers) getInfo(ctx context.Context, _ map[string]any) Result {
	currentURL, err := h.Settings.CurrentURL(ctx)
	if err != nil {
		h.Logger.Warn("reading current url failed", "error", err)
	}
	return OKData("Device info", h.Collector.Collect(currentURL))
}

func (h *Handlers) getStorage(_ context.Context, _ map[string]any) Result {
	snapshot := h.Collector.Collect("")

	data := map[string]any{}
	for _, field := range []string{"storageTotal", "storageFree", "storageUsedPercent"} {
		if v, ok := snapshot[field]; ok {
			data[field] = v
		}
	}
	if len(data) == 0 {
		return Fail("Storage info unavailable")
	}
	return OKData("Storage", data)
}

func (h *Handlers) ping(ctx context.Context, payload map[string]any) Result {
	host, ok := stringField(payload, "host")
	if !ok || host == "" {
		return OK("pong")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return Failf("Host %s unreachable: %v", host, err)
	}
	return OKData("Host reachable", map[string]any{"host": host, "addresses": addrs})
}

func (h *Handlers) runShell(ctx context.Context, payload map[string]any) Result {
	cmdline, ok := stringField(payload, "command")
	if !ok || cmdline == "" {
		return Fail("Missing command parameter")
	}
	return h.Shell.Run(ctx, cmdline)
}

func (h *Handlers) scheduleReboot(ctx context.Context, payload map[string]any) Result {
	hour, ok := intField(payload, "hour")
	if !ok || hour < 0 || hour > maxHour {
		return Fail("Missing or invalid hour parameter, must be 0-23")
	}
	minute, ok := intField(payload, "minute")
	if !ok || minute < 0 || minute > maxMinute {
		return Fail("Missing or invalid minute parameter, must be 0-59")
	}
	daily, ok := boolField(payload, "daily")
	if !ok {
		daily = true
	}

	sched := settings.RebootSchedule{Enabled: true, Hour: hour, Minute: minute, Daily: daily}
	if err := h.Settings.SetRebootSchedule(ctx, sched); err != nil {
		return Failf("Error: %v", err)
	}
	h.Reboots.Reschedule()

	return OKData("Reboot scheduled", map[string]any{
		"hour":   hour,
		"minute": minute,
		"daily":  daily,
	})
}

func (h *Handlers) cancelScheduledReboot(ctx context.Context, _ map[string]any) Result {
	if err := h.Settings.SetRebootSchedule(ctx, settings.RebootSchedule{}); err != nil {
		return Failf("Error: %v", err)
	}
	h.Reboots.Reschedule()
	return OK("Scheduled reboot cancelled")
}

func (h *Handlers) restartApp(_ context.Context, _ map[string]any) Result {
	if err := h.Supervisor.Restart(); err != nil {
		return Failf("Error: %v", err)
	}
	return OK("Renderer restarting")
}

func (h *Handlers) update(_ context.Context, payload map[string]any) Result {
	url, ok := stringField(payload, "url")
	if !ok || url == "" {
		return Fail("Missing url parameter")
	}

	if err := h.Updater.Start(url); err != nil {
		return Failf("Error: %v", err)
	}
	return OK("Update download started")
}

// stringField extracts a string payload field.
func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key].(string)
	return v, ok
}

// boolField extracts a bool payload field.
func boolField(payload map[string]any, key string) (bool, bool) {
	v, ok := payload[key].(bool)
	return v, ok
}

// intField extracts a numeric payload field. JSON numbers decode as
// float64; whole values are accepted, fractional ones are not.
func intField(payload map[string]any, key string) (int, bool) {
	switch v := payload[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
