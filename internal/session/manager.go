package session

import (
	"context"
	"sync"
	"time"

	"github.com/iocast/kiosk-agent/internal/command"
	"github.com/iocast/kiosk-agent/internal/infrastructure/config"
	"github.com/iocast/kiosk-agent/internal/infrastructure/mqtt"
	"github.com/iocast/kiosk-agent/internal/settings"
)

// dispatchTimeout bounds a single command execution.
const dispatchTimeout = 30 * time.Second

// Client is the broker connection the manager drives. Satisfied by
// *mqtt.Client.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	Close() error
}

// Connector opens the broker connection for a session.
type Connector func(opts mqtt.Options) (Client, error)

// Dispatcher executes one named command. Satisfied by
// *command.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, raw []byte) command.Result
}

// Collector produces telemetry snapshots.
type Collector interface {
	Collect(currentURL string) map[string]any
}

// Mirror receives a copy of every published telemetry snapshot and
// event, e.g. for fleet analytics. Optional.
type Mirror interface {
	WriteTelemetry(deviceID string, fields map[string]any)
	WriteEvent(deviceID string, event string)
}

// Settings is the slice of the settings store the session needs.
// Satisfied by *settings.Store.
type Settings interface {
	DeviceID(ctx context.Context) (string, error)
	BrokerURL(ctx context.Context) (string, error)
	Username(ctx context.Context) (string, error)
	Password(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	RebootSchedule(ctx context.Context) (settings.RebootSchedule, error)
	SetRebootSchedule(ctx context.Context, sched settings.RebootSchedule) error
}

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

// Manager owns the long-lived device session after provisioning.
//
// On every (re)connection it runs the same sequence: publish the
// retained online status, subscribe to the command topic, start the
// telemetry ticker, announce the connection as an event. The sequence
// is idempotent, so a reconnect renews the retained status without
// ever stacking a second ticker or subscription.
//
// Publishing while disconnected is a silent no-op: commands from the
// previous connection are treated as lost and telemetry resumes with
// the next connected tick.
type Manager struct {
	cfg        config.SessionConfig
	broker     BrokerConfig
	store      Settings
	dispatcher Dispatcher
	collector  Collector
	connector  Connector
	mirror     Mirror
	logger     Logger
	topics     mqtt.Topics

	mu            sync.Mutex
	client        Client
	telemetryStop chan struct{}
	wg            sync.WaitGroup
	started       bool
	stopped       bool

	// connectRan latches the connect sequence for the current physical
	// connection. The transport reports the initial connect both from
	// Start and through the registered callback; the latch makes sure
	// only one of them runs the sequence. A disconnect clears it.
	connectRan bool
}

// NewManager creates a session manager.
func NewManager(cfg config.SessionConfig, broker BrokerConfig, store Settings, dispatcher Dispatcher, collector Collector, connector Connector) *Manager {
	return &Manager{
		cfg:        cfg,
		broker:     broker,
		store:      store,
		dispatcher: dispatcher,
		collector:  collector,
		connector:  connector,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetMirror sets an optional telemetry mirror.
func (m *Manager) SetMirror(mirror Mirror) {
	m.mirror = mirror
}

// Start connects to the broker and brings the session online.
//
// The last-will offline status is registered with the connection so
// the broker announces the device's death even when the process never
// gets to say goodbye.
func (m *Manager) Start() error {
	if !m.broker.IsValid() {
		return ErrInvalidBrokerConfig
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	opts := mqtt.Options{
		Host:                  m.broker.Host,
		Port:                  m.broker.Port,
		TLS:                   m.broker.TLS,
		ClientID:              m.broker.ClientID(),
		Username:              m.broker.Username,
		Password:              m.broker.Password,
		QoS:                   byte(m.cfg.QoS),
		ReconnectInitialDelay: m.cfg.Reconnect.InitialDelay,
		ReconnectMaxDelay:     m.cfg.Reconnect.MaxDelay,
		Will: &mqtt.WillMessage{
			Topic:    m.topics.Status(m.broker.DeviceID),
			Payload:  encodeStatus(statusOffline, m.broker.DeviceID),
			QoS:      byte(m.cfg.QoS),
			Retained: true,
		},
	}

	client, err := m.connector(opts)
	if err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	client.SetOnConnect(m.handleConnected)
	client.SetOnDisconnect(m.handleDisconnected)

	// The initial connect happened inside the connector, before the
	// callback was registered. Run the sequence once by hand; it is
	// idempotent against the callback also having fired.
	m.handleConnected()

	m.logger.Info("session started",
		"device_id", m.broker.DeviceID,
		"broker", m.broker.Host,
	)
	return nil
}

// Stop takes the session offline.
//
// The telemetry ticker is cancelled before the transport goes away,
// then a best-effort offline status replaces the retained online one
// so observers see a clean shutdown instead of waiting for the will.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	if m.telemetryStop != nil {
		close(m.telemetryStop)
		m.telemetryStop = nil
	}
	client := m.client
	m.mu.Unlock()

	m.wg.Wait()

	if client == nil {
		return nil
	}
	if client.IsConnected() {
		if err := client.Unsubscribe(m.topics.CommandFilter(m.broker.DeviceID)); err != nil {
			m.logger.Warn("unsubscribing from command topic failed", "error", err)
		}
		topic := m.topics.Status(m.broker.DeviceID)
		payload := encodeStatus(statusOffline, m.broker.DeviceID)
		if err := client.PublishRetained(topic, payload); err != nil {
			m.logger.Warn("publishing offline status failed", "error", err)
		}
	}
	return client.Close()
}

// PublishTelemetry collects and publishes one telemetry snapshot.
// While disconnected it is a no-op.
func (m *Manager) PublishTelemetry() {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil || !client.IsConnected() {
		m.logger.Debug("skipping telemetry publish, not connected")
		return
	}

	currentURL, err := m.store.CurrentURL(context.Background())
	if err != nil {
		m.logger.Warn("reading current url failed", "error", err)
	}
	snapshot := m.collector.Collect(currentURL)

	payload, err := encodeSnapshot(snapshot)
	if err != nil {
		m.logger.Error("encoding telemetry failed", "error", err)
		return
	}
	topic := m.topics.Telemetry(m.broker.DeviceID)
	if err := client.PublishRetained(topic, payload); err != nil {
		m.logger.Warn("publishing telemetry failed", "error", err)
		return
	}

	if m.mirror != nil {
		m.mirror.WriteTelemetry(m.broker.DeviceID, snapshot)
	}
}

// PublishEvent publishes a fire-and-forget device event. While
// disconnected it is a no-op. Implements command.EventPublisher.
func (m *Manager) PublishEvent(event string, data map[string]any) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil || !client.IsConnected() {
		m.logger.Debug("skipping event publish, not connected", "event", event)
		return
	}

	topic := m.topics.Events(m.broker.DeviceID)
	payload := encodeEvent(event, m.broker.DeviceID, data)
	if err := client.Publish(topic, payload, byte(m.cfg.QoS), false); err != nil {
		m.logger.Warn("publishing event failed", "event", event, "error", err)
	}

	if m.mirror != nil {
		m.mirror.WriteEvent(m.broker.DeviceID, event)
	}
}

// handleConnected runs the connect sequence exactly once per physical
// connection: the connectRan latch absorbs duplicate notifications for
// the same connect, and a reconnect reruns the sequence because the
// disconnect in between cleared the latch.
func (m *Manager) handleConnected() {
	m.mu.Lock()
	if m.stopped || m.client == nil || m.connectRan {
		m.mu.Unlock()
		return
	}
	m.connectRan = true
	client := m.client
	m.mu.Unlock()

	deviceID := m.broker.DeviceID

	if err := client.PublishRetained(m.topics.Status(deviceID), encodeStatus(statusOnline, deviceID)); err != nil {
		m.logger.Warn("publishing online status failed", "error", err)
	}

	if err := client.Subscribe(m.topics.CommandFilter(deviceID), byte(m.cfg.QoS), m.onMessage); err != nil {
		m.logger.Error("subscribing to command topic failed", "error", err)
	}

	m.startTelemetry()

	m.PublishEvent("mqttConnected", nil)
	m.logger.Info("session connected", "device_id", deviceID)
}

func (m *Manager) handleDisconnected(err error) {
	m.mu.Lock()
	m.connectRan = false
	m.mu.Unlock()
	m.logger.Warn("session disconnected", "error", err)
}

// startTelemetry starts the periodic telemetry loop if it is not
// already running.
func (m *Manager) startTelemetry() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.telemetryStop != nil {
		return
	}

	interval := m.cfg.TelemetryInterval
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	m.telemetryStop = stop
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Initial snapshot right away, then on the ticker.
		m.PublishTelemetry()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.PublishTelemetry()
			}
		}
	}()
}

// onMessage handles one inbound message from the command filter.
// Anything that is not a well-formed four-segment command topic is
// dropped silently.
func (m *Manager) onMessage(topic string, payload []byte) error {
	name, ok := mqtt.ParseCommandTopic(topic)
	if !ok {
		m.logger.Debug("ignoring message on non-command topic", "topic", topic)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	result := m.dispatcher.Dispatch(ctx, name, payload)
	m.publishAck(name, result)
	return nil
}

func (m *Manager) publishAck(name string, result command.Result) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil || !client.IsConnected() {
		m.logger.Debug("skipping ack publish, not connected", "command", name)
		return
	}

	topic := m.topics.CommandAck(m.broker.DeviceID, name)
	payload := encodeAck(name, result.Success, result.Message, result.Data)
	if err := client.Publish(topic, payload, byte(m.cfg.QoS), false); err != nil {
		m.logger.Warn("publishing ack failed", "command", name, "error", err)
	}
}
