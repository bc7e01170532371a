package provisioning

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iocast/kiosk-agent/internal/infrastructure/config"
	"github.com/iocast/kiosk-agent/internal/infrastructure/mqtt"
)

// provisionQoS is the QoS level for the handshake. At-least-once so
// a flaky link during setup does not silently drop the request.
const provisionQoS = 1

// fallbackResetDelay applies when the configured reset delay is
// missing or non-positive.
const fallbackResetDelay = 5 * time.Second

// State is a provisioning handshake state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSubscribing
	StateRequesting
	StateAwaitingApproval
	StateBound
	StateFailed
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateRequesting:
		return "requesting"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateBound:
		return "bound"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the broker connection the engine drives. Satisfied by
// *mqtt.Client.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Close() error
}

// TransportFactory opens a broker connection for one handshake.
type TransportFactory func(opts mqtt.Options) (Transport, error)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Engine runs the provisioning handshake that binds a device to a
// customer account.
//
// The flow is strictly ordered: connect to the provisioning broker,
// subscribe to the per-device response topic, then publish the
// request. Subscribing before publishing guarantees an immediate
// approval cannot race past the listener.
//
// Callers only ever observe state transitions; every failure mode is
// folded into StateFailed with a reason, and a failed handshake
// returns to StateIdle after the configured reset delay.
type Engine struct {
	cfg      config.ProvisioningConfig
	deviceID string
	info     map[string]any
	factory  TransportFactory
	topics   mqtt.Topics
	logger   Logger

	onTransition func(State)
	onBind       func(Binding)

	mu           sync.Mutex
	state        State
	reason       string
	customerName string
	transport    Transport
	session      uint64
	approvalTmr  *time.Timer
	resetTmr     *time.Timer
}

// New creates an engine for the given device.
//
// info is the device-info object embedded in the provisioning
// request; it may be nil.
func New(cfg config.ProvisioningConfig, deviceID string, info map[string]any, factory TransportFactory) *Engine {
	return &Engine{
		cfg:      cfg,
		deviceID: deviceID,
		info:     info,
		factory:  factory,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetTransitionHandler registers a callback invoked on every state
// change, in transition order. The callback runs with the engine lock
// held and must not call back into the engine; it receives the new
// state as its argument.
func (e *Engine) SetTransitionHandler(fn func(State)) {
	e.onTransition = fn
}

// SetBindHandler registers the callback that receives the resolved
// Binding when the handshake succeeds.
func (e *Engine) SetBindHandler(fn func(Binding)) {
	e.onBind = fn
}

// State returns the current handshake state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// FailureReason returns the reason of the last failure, if any.
func (e *Engine) FailureReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

// CustomerName returns the display-only customer name hint from a
// pending response.
func (e *Engine) CustomerName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.customerName
}

// SubmitCode starts a handshake for the given customer code.
//
// The code must be exactly four ASCII digits. Only one handshake runs
// at a time; submitting while one is active returns
// ErrAlreadyRunning. The handshake itself proceeds asynchronously and
// is observed through the transition handler.
func (e *Engine) SubmitCode(code string) error {
	if !validCode(code) {
		return ErrInvalidCode
	}

	e.mu.Lock()
	switch e.state {
	case StateIdle, StateFailed, StateCancelled:
	default:
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.stopTimersLocked()
	e.reason = ""
	e.customerName = ""
	e.session++
	session := e.session
	e.setStateLocked(StateConnecting)
	e.mu.Unlock()

	go e.run(session, code)
	return nil
}

// Cancel aborts an in-flight handshake and tears down its transport.
// Safe to call in any state.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.session++
	e.stopTimersLocked()
	transport := e.transport
	e.transport = nil
	changed := e.state != StateIdle && e.state != StateCancelled
	if changed {
		e.setStateLocked(StateCancelled)
	}
	e.mu.Unlock()

	if transport != nil {
		if err := transport.Close(); err != nil {
			e.logger.Warn("closing provisioning transport failed", "error", err)
		}
	}
}

// run performs the connect-subscribe-request sequence for one
// handshake attempt.
func (e *Engine) run(session uint64, code string) {
	opts := mqtt.Options{
		Host:     e.cfg.Broker.Host,
		Port:     e.cfg.Broker.Port,
		TLS:      e.cfg.Broker.TLS,
		ClientID: "provision-" + e.deviceID + "-" + uuid.NewString()[:8],
		Username: e.cfg.Broker.Username,
		Password: e.cfg.Broker.Password,
		QoS:      provisionQoS,
	}

	transport, err := e.factory(opts)
	if err != nil {
		e.fail(session, fmt.Sprintf("connection failed: %v", err))
		return
	}

	e.mu.Lock()
	if e.session != session {
		e.mu.Unlock()
		transport.Close()
		return
	}
	e.transport = transport
	e.setStateLocked(StateSubscribing)
	e.mu.Unlock()

	responseTopic := e.topics.ProvisionResponse(code, e.deviceID)
	handler := func(_ string, payload []byte) error {
		e.handleResponse(session, payload)
		return nil
	}
	if err := transport.Subscribe(responseTopic, provisionQoS, handler); err != nil {
		e.fail(session, fmt.Sprintf("subscribe failed: %v", err))
		return
	}

	e.transition(session, StateRequesting)

	payload, err := json.Marshal(newRequest(e.deviceID, code, e.info))
	if err != nil {
		e.fail(session, fmt.Sprintf("encoding request failed: %v", err))
		return
	}
	if err := transport.Publish(e.topics.ProvisionRequest(code), payload, provisionQoS, false); err != nil {
		e.fail(session, fmt.Sprintf("publishing request failed: %v", err))
		return
	}

	e.mu.Lock()
	if e.session != session {
		e.mu.Unlock()
		return
	}
	e.setStateLocked(StateAwaitingApproval)
	if e.cfg.ApprovalTimeout > 0 {
		e.approvalTmr = time.AfterFunc(e.cfg.ApprovalTimeout, func() {
			e.fail(session, "approval timed out")
		})
	}
	e.mu.Unlock()

	e.logger.Info("provisioning request sent", "code", code, "device_id", e.deviceID)
}

// handleResponse processes one message from the response topic.
func (e *Engine) handleResponse(session uint64, payload []byte) {
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		e.logger.Warn("malformed provisioning response", "error", err)
		e.fail(session, "invalid response")
		return
	}

	e.mu.Lock()
	if e.session != session || e.state != StateAwaitingApproval {
		e.mu.Unlock()
		return
	}

	switch {
	case resp.approved():
		binding, err := resp.binding()
		if err != nil {
			e.mu.Unlock()
			e.fail(session, fmt.Sprintf("invalid approval: %v", err))
			return
		}
		if binding.BrokerURL == "" {
			binding.BrokerURL = e.defaultBrokerURL()
		}
		e.stopTimersLocked()
		if binding.CustomerName == "" {
			binding.CustomerName = e.customerName
		}
		transport := e.transport
		e.transport = nil
		e.setStateLocked(StateBound)
		onBind := e.onBind
		e.mu.Unlock()

		e.logger.Info("device bound", "start_url", binding.StartURL)
		if onBind != nil {
			onBind(binding)
		}
		if transport != nil {
			transport.Close()
		}

	case resp.Status == "pending":
		if resp.CustomerName != "" {
			e.customerName = resp.CustomerName
		}
		e.mu.Unlock()
		e.logger.Debug("provisioning pending", "customer", resp.CustomerName)

	case resp.Status == "rejected":
		e.mu.Unlock()
		reason := resp.Reason
		if reason == "" {
			reason = "request rejected"
		}
		e.fail(session, reason)

	default:
		e.mu.Unlock()
		e.logger.Warn("unrecognized provisioning response", "status", resp.Status)
	}
}

// fail moves the handshake to StateFailed and arms the reset timer
// that returns the engine to StateIdle.
func (e *Engine) fail(session uint64, reason string) {
	e.mu.Lock()
	if e.session != session {
		e.mu.Unlock()
		return
	}
	e.stopTimersLocked()
	e.reason = reason
	transport := e.transport
	e.transport = nil
	e.setStateLocked(StateFailed)

	delay := e.cfg.ResetDelay
	if delay <= 0 {
		delay = fallbackResetDelay
	}
	e.resetTmr = time.AfterFunc(delay, func() {
		e.mu.Lock()
		if e.session == session && e.state == StateFailed {
			e.reason = ""
			e.setStateLocked(StateIdle)
		}
		e.mu.Unlock()
	})
	e.mu.Unlock()

	e.logger.Warn("provisioning failed", "reason", reason)
	if transport != nil {
		transport.Close()
	}
}

// transition moves to next unless the handshake was superseded.
func (e *Engine) transition(session uint64, next State) {
	e.mu.Lock()
	if e.session != session {
		e.mu.Unlock()
		return
	}
	e.setStateLocked(next)
	e.mu.Unlock()
}

// setStateLocked updates the state and fires the transition handler.
// Caller holds e.mu, which is what keeps observed transitions in
// order.
func (e *Engine) setStateLocked(next State) {
	e.state = next
	if e.onTransition != nil {
		e.onTransition(next)
	}
}

func (e *Engine) stopTimersLocked() {
	if e.approvalTmr != nil {
		e.approvalTmr.Stop()
		e.approvalTmr = nil
	}
	if e.resetTmr != nil {
		e.resetTmr.Stop()
		e.resetTmr = nil
	}
}

// defaultBrokerURL derives a session broker URL from the provisioning
// broker for approvals that omit brokerUrl.
func (e *Engine) defaultBrokerURL() string {
	scheme := "tcp"
	if e.cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, e.cfg.Broker.Host, e.cfg.Broker.Port)
}

// validCode reports whether code is exactly four ASCII digits.
func validCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
