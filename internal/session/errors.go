package session

import "errors"

var (
	// ErrNotConfigured indicates the device has no persisted broker
	// binding yet; provisioning must run first.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidBrokerURL indicates a broker URL that cannot be parsed.
	ErrInvalidBrokerURL = errors.New("invalid broker URL")

	// ErrInvalidBrokerConfig indicates a broker config missing host or
	// device ID.
	ErrInvalidBrokerConfig = errors.New("invalid broker config")

	// ErrAlreadyStarted indicates Start was called on a running manager.
	ErrAlreadyStarted = errors.New("session already started")
)
