package provisioning

import "errors"

var (
	// ErrInvalidCode indicates the customer code is not exactly four digits.
	ErrInvalidCode = errors.New("customer code must be exactly 4 digits")

	// ErrAlreadyRunning indicates a handshake is already in progress.
	ErrAlreadyRunning = errors.New("provisioning already in progress")

	// ErrMissingStartURL indicates an approval response without the
	// mandatory startUrl field.
	ErrMissingStartURL = errors.New("approval response missing startUrl")
)
