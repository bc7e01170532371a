// Package command implements remote command dispatch for the kiosk
// agent.
//
// Inbound command messages are routed by name through an explicit
// registry to typed handlers. Every invocation yields exactly one
// Result regardless of what goes wrong: unknown names, malformed
// payloads and handler panics are all folded into failed results so
// command execution can never tear down the session.
//
// Handlers act through narrow collaborator interfaces (Display,
// System, Settings, ...) so the package stays free of transport and
// platform concerns.
package command
