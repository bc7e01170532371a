package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iocast/kiosk-agent/internal/settings"
)

type fakeRebooter struct {
	mu    sync.Mutex
	count int
}

func (f *fakeRebooter) Reboot(context.Context) error {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return nil
}

func (f *fakeRebooter) reboots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func TestRebootScheduler_FiresAtScheduledTime(t *testing.T) {
	store := &fakeStore{
		schedule: settings.RebootSchedule{Enabled: true, Hour: 3, Minute: 0, Daily: true},
	}
	rebooter := &fakeRebooter{}

	s := NewRebootScheduler(store, rebooter)
	// Freeze "now" just before the scheduled time so the timer fires
	// within the test's lifetime.
	s.now = func() time.Time {
		return time.Date(2026, 1, 2, 2, 59, 59, int(950*time.Millisecond), time.Local)
	}

	s.Start()
	t.Cleanup(s.Stop)

	waitFor(t, func() bool { return rebooter.reboots() >= 1 })
}

func TestRebootScheduler_OneShotFiresOnce(t *testing.T) {
	store := &fakeStore{
		schedule: settings.RebootSchedule{Enabled: true, Hour: 3, Minute: 0, Daily: false},
	}
	rebooter := &fakeRebooter{}

	s := NewRebootScheduler(store, rebooter)
	// A frozen clock keeps the computed delay tiny, so a schedule that
	// wrongly re-armed would fire again within the settle window.
	s.now = func() time.Time {
		return time.Date(2026, 1, 2, 2, 59, 59, int(950*time.Millisecond), time.Local)
	}

	s.Start()
	t.Cleanup(s.Stop)

	waitFor(t, func() bool { return rebooter.reboots() >= 1 })
	time.Sleep(200 * time.Millisecond)

	if got := rebooter.reboots(); got != 1 {
		t.Errorf("reboots = %d, want 1", got)
	}

	sched, err := store.RebootSchedule(context.Background())
	if err != nil {
		t.Fatalf("RebootSchedule() error = %v", err)
	}
	if sched.Enabled {
		t.Error("one-shot schedule still enabled after firing")
	}
}

func TestRebootScheduler_DisabledNeverFires(t *testing.T) {
	store := &fakeStore{}
	rebooter := &fakeRebooter{}

	s := NewRebootScheduler(store, rebooter)
	s.Start()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if got := rebooter.reboots(); got != 0 {
		t.Errorf("reboots = %d, want 0", got)
	}
}

func TestRebootScheduler_RescheduleWakesLoop(t *testing.T) {
	store := &fakeStore{}
	rebooter := &fakeRebooter{}

	s := NewRebootScheduler(store, rebooter)
	s.now = func() time.Time {
		return time.Date(2026, 1, 2, 2, 59, 59, int(950*time.Millisecond), time.Local)
	}

	s.Start()
	t.Cleanup(s.Stop)

	// The loop parked with no schedule; enabling one and poking it
	// must arm the timer.
	store.setSchedule(settings.RebootSchedule{Enabled: true, Hour: 3, Minute: 0, Daily: true})
	s.Reschedule()

	waitFor(t, func() bool { return rebooter.reboots() >= 1 })
}
