// Package session runs the device's long-lived broker connection
// after provisioning.
//
// The Manager registers an offline last-will, then on every
// (re)connection publishes the retained online status, subscribes to
// the per-device command topic and keeps a single telemetry ticker
// alive. Inbound commands are handed to the dispatcher and each
// result is published back as an acknowledgment on the per-command
// ack topic.
//
// The package also hosts the scheduled-reboot loop, which is re-armed
// whenever a remote command changes the persisted schedule.
package session
