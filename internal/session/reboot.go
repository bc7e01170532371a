package session

import (
	"context"
	"sync"
	"time"

	"github.com/iocast/kiosk-agent/internal/settings"
)

// scheduleReadTimeout bounds the settings read when (re)arming.
const scheduleReadTimeout = 5 * time.Second

// Rebooter reboots the host. Satisfied by the command.System
// implementation.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// RebootScheduler fires a host reboot at the persisted schedule time.
//
// The schedule lives in the settings store; Reschedule re-reads it
// after the scheduleReboot or cancelScheduledReboot command changed
// it. Implements command.Rescheduler.
type RebootScheduler struct {
	store    Settings
	rebooter Rebooter
	logger   Logger

	// now is swappable for tests.
	now func() time.Time

	kick     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRebootScheduler creates a scheduler reading its schedule from
// the settings store.
func NewRebootScheduler(store Settings, rebooter Rebooter) *RebootScheduler {
	return &RebootScheduler{
		store:    store,
		rebooter: rebooter,
		logger:   noopLogger{},
		now:      time.Now,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the scheduler.
func (s *RebootScheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the scheduling loop.
func (s *RebootScheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop terminates the scheduling loop.
func (s *RebootScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// Reschedule re-reads the persisted schedule and re-arms the timer.
func (s *RebootScheduler) Reschedule() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *RebootScheduler) loop() {
	defer s.wg.Done()

	for {
		wait, sched, armed := s.nextWait()

		if !armed {
			// No active schedule; sleep until poked.
			select {
			case <-s.done:
				return
			case <-s.kick:
				continue
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.done:
			timer.Stop()
			return
		case <-s.kick:
			timer.Stop()
			continue
		case <-timer.C:
			s.fire(sched)
		}
	}
}

// nextWait computes the delay until the next scheduled reboot, along
// with the schedule it was derived from.
func (s *RebootScheduler) nextWait() (time.Duration, settings.RebootSchedule, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), scheduleReadTimeout)
	defer cancel()

	sched, err := s.store.RebootSchedule(ctx)
	if err != nil {
		s.logger.Warn("reading reboot schedule failed", "error", err)
		return 0, sched, false
	}
	if !sched.Enabled {
		return 0, sched, false
	}

	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), sched.Hour, sched.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	s.logger.Info("reboot scheduled", "at", next)
	return next.Sub(now), sched, true
}

// fire executes one scheduled reboot. A one-shot schedule is consumed
// before the reboot so it never re-arms.
func (s *RebootScheduler) fire(sched settings.RebootSchedule) {
	if !sched.Daily {
		ctx, cancel := context.WithTimeout(context.Background(), scheduleReadTimeout)
		sched.Enabled = false
		if err := s.store.SetRebootSchedule(ctx, sched); err != nil {
			s.logger.Warn("disabling one-shot reboot schedule failed", "error", err)
		}
		cancel()
	}

	s.logger.Info("scheduled reboot firing")
	if err := s.rebooter.Reboot(context.Background()); err != nil {
		s.logger.Error("scheduled reboot failed", "error", err)
	}
}
