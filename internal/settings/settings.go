package settings

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// Setting keys. Never exposed outside this package.
const (
	keyConfigured = "configured"
	keyBrokerURL  = "broker_url"
	keyUsername   = "username"
	keyPassword   = "password"
	keyDeviceID   = "device_id"
	keyStartURL   = "start_url"
	keyCurrentURL = "current_url"
	keyKioskMode  = "kiosk_mode"

	keyRebootEnabled = "scheduled_reboot_enabled"
	keyRebootHour    = "scheduled_reboot_hour"
	keyRebootMinute  = "scheduled_reboot_minute"
	keyRebootDaily   = "scheduled_reboot_daily"
)

// deviceIDByteLen is the number of UUID hex characters kept in a
// generated device ID.
const deviceIDByteLen = 8

// DeviceID returns the stable per-device identifier, generating and
// persisting one on first access. Once generated it is never changed
// for the lifetime of the device.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	id, ok, err := s.get(ctx, keyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}

	id = generateDeviceID()
	if err := s.set(ctx, keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// generateDeviceID produces a new device identifier of the form
// kiosk-a1b2c3d4.
func generateDeviceID() string {
	return "kiosk-" + uuid.NewString()[:deviceIDByteLen]
}

// Configured reports whether provisioning has completed.
func (s *Store) Configured(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keyConfigured, false)
}

// SetConfigured marks provisioning as complete (or resets it).
func (s *Store) SetConfigured(ctx context.Context, v bool) error {
	return s.setBool(ctx, keyConfigured, v)
}

// BrokerURL returns the bound session broker URL (tcp:// or ssl://).
func (s *Store) BrokerURL(ctx context.Context) (string, error) {
	return s.getString(ctx, keyBrokerURL, "")
}

// SetBrokerURL persists the session broker URL.
func (s *Store) SetBrokerURL(ctx context.Context, v string) error {
	return s.set(ctx, keyBrokerURL, v)
}

// Username returns the session broker username.
func (s *Store) Username(ctx context.Context) (string, error) {
	return s.getString(ctx, keyUsername, "")
}

// SetUsername persists the session broker username.
func (s *Store) SetUsername(ctx context.Context, v string) error {
	return s.set(ctx, keyUsername, v)
}

// Password returns the session broker password.
func (s *Store) Password(ctx context.Context) (string, error) {
	return s.getString(ctx, keyPassword, "")
}

// SetPassword persists the session broker password.
func (s *Store) SetPassword(ctx context.Context, v string) error {
	return s.set(ctx, keyPassword, v)
}

// StartURL returns the configured start page.
func (s *Store) StartURL(ctx context.Context) (string, error) {
	return s.getString(ctx, keyStartURL, "")
}

// SetStartURL persists the start page.
func (s *Store) SetStartURL(ctx context.Context, v string) error {
	return s.set(ctx, keyStartURL, v)
}

// CurrentURL returns the page the display is currently showing.
// Falls back to the start URL when never set.
func (s *Store) CurrentURL(ctx context.Context) (string, error) {
	v, ok, err := s.get(ctx, keyCurrentURL)
	if err != nil {
		return "", err
	}
	if ok {
		return v, nil
	}
	return s.StartURL(ctx)
}

// SetCurrentURL persists the currently displayed page.
func (s *Store) SetCurrentURL(ctx context.Context, v string) error {
	return s.set(ctx, keyCurrentURL, v)
}

// KioskMode reports whether kiosk (locked-down) mode is enabled.
// Defaults to true.
func (s *Store) KioskMode(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keyKioskMode, true)
}

// SetKioskMode persists the kiosk mode flag.
func (s *Store) SetKioskMode(ctx context.Context, v bool) error {
	return s.setBool(ctx, keyKioskMode, v)
}

// RebootSchedule describes the persisted scheduled-reboot settings.
type RebootSchedule struct {
	Enabled bool
	Hour    int
	Minute  int
	Daily   bool
}

// RebootSchedule returns the persisted scheduled-reboot settings.
// Defaults: disabled, 03:00, daily.
func (s *Store) RebootSchedule(ctx context.Context) (RebootSchedule, error) {
	enabled, err := s.getBool(ctx, keyRebootEnabled, false)
	if err != nil {
		return RebootSchedule{}, err
	}
	hour, err := s.getInt(ctx, keyRebootHour, 3)
	if err != nil {
		return RebootSchedule{}, err
	}
	minute, err := s.getInt(ctx, keyRebootMinute, 0)
	if err != nil {
		return RebootSchedule{}, err
	}
	daily, err := s.getBool(ctx, keyRebootDaily, true)
	if err != nil {
		return RebootSchedule{}, err
	}
	return RebootSchedule{Enabled: enabled, Hour: hour, Minute: minute, Daily: daily}, nil
}

// SetRebootSchedule persists the scheduled-reboot settings.
func (s *Store) SetRebootSchedule(ctx context.Context, sched RebootSchedule) error {
	if err := s.setBool(ctx, keyRebootEnabled, sched.Enabled); err != nil {
		return err
	}
	if err := s.setInt(ctx, keyRebootHour, sched.Hour); err != nil {
		return err
	}
	if err := s.setInt(ctx, keyRebootMinute, sched.Minute); err != nil {
		return err
	}
	return s.setBool(ctx, keyRebootDaily, sched.Daily)
}

// getString reads a string setting with a default.
func (s *Store) getString(ctx context.Context, key, def string) (string, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// getBool reads a boolean setting with a default.
func (s *Store) getBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	return v == "true", nil
}

// setBool writes a boolean setting.
func (s *Store) setBool(ctx context.Context, key string, v bool) error {
	return s.set(ctx, key, strconv.FormatBool(v))
}

// getInt reads an integer setting with a default.
func (s *Store) getInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil {
		return def, nil
	}
	return n, nil
}

// setInt writes an integer setting.
func (s *Store) setInt(ctx context.Context, key string, v int) error {
	return s.set(ctx, key, strconv.Itoa(v))
}
