// Package provisioning binds a freshly unboxed device to a customer
// account.
//
// The operator enters a short 4-digit code handed out by the fleet
// backend. The engine connects to the provisioning broker, subscribes
// to its per-device response topic, publishes a request carrying the
// code and device identity, and waits for the backend (or a human
// approver behind it) to answer. An approval yields a Binding with
// the device's permanent broker configuration and start URL; a
// rejection or timeout surfaces as a failed state that clears back to
// code entry after a short delay.
//
// No pre-shared per-device credentials are involved: the code is the
// only secret, and it is short-lived on the backend side.
package provisioning
