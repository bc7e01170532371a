// Package settings provides the persistent device settings store.
//
// The store is a single SQLite key-value table holding everything the
// agent needs across restarts: the stable device identity (generated on
// first run, never regenerated), the broker configuration bound during
// provisioning, the start URL, and command-adjustable state like kiosk
// mode and the scheduled reboot.
//
// All access is through typed getters and setters; callers never see
// raw keys. The database file is created with owner-only permissions
// because broker credentials live in it.
package settings
