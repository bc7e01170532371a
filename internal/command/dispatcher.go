package command

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Handler executes one named command. The payload map is already
// decoded; it is empty (never nil) when the message carried no body.
type Handler func(ctx context.Context, payload map[string]any) Result

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Dispatcher maps command names to handlers.
//
// Handlers are registered explicitly at startup. Dispatch never
// panics and never returns more than one result per invocation;
// every failure mode (unknown name, malformed payload, handler
// panic) is converted to a failed Result.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.mu.Lock()
	d.logger = logger
	d.mu.Unlock()
}

// Register binds a handler to a command name, replacing any existing
// binding for that name.
func (d *Dispatcher) Register(name string, handler Handler) {
	d.mu.Lock()
	d.handlers[name] = handler
	d.mu.Unlock()
}

// Names returns the registered command names, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	d.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Dispatch decodes the raw payload and invokes the handler registered
// for name.
//
// An unregistered name returns a failed result, not an error. A
// payload that is present but not a JSON object returns a failed
// result describing the decode problem. A panicking handler is
// recovered and reported as a failed result.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw []byte) (result Result) {
	d.mu.RLock()
	handler, ok := d.handlers[name]
	logger := d.logger
	d.mu.RUnlock()

	if !ok {
		logger.Warn("unknown command", "command", name)
		return Fail("Unknown command: " + name)
	}

	payload := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			logger.Warn("command payload decode failed", "command", name, "error", err)
			return Failf("Error: invalid payload: %v", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("command handler panic recovered", "command", name, "panic", r)
			result = Failf("Error: internal failure executing %s", name)
		}
	}()

	logger.Debug("dispatching command", "command", name)
	return handler(ctx, payload)
}
