package command

import "fmt"

// Result is the outcome of a single command invocation. Exactly one
// Result is produced per inbound command; asynchronous follow-up
// (e.g. a completed download) is reported as an event, never as a
// second Result.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK returns a successful result with the given message.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// OKData returns a successful result carrying structured data.
func OKData(message string, data map[string]any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// Fail returns a failed result with the given message.
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

// Failf returns a failed result with a formatted message.
func Failf(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}
