package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iocast/kiosk-agent/internal/command"
	"github.com/iocast/kiosk-agent/internal/infrastructure/config"
	"github.com/iocast/kiosk-agent/internal/infrastructure/mqtt"
	"github.com/iocast/kiosk-agent/internal/settings"
)

type pub struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	pubs         []pub
	subs         map[string]mqtt.MessageHandler
	unsubs       []string
	onConnect    func()
	onDisconnect func(err error)
	closed       bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, subs: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeClient) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, pub{topic, payload, retained})
	return nil
}

func (f *fakeClient) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, pub{topic, payload, true})
	return nil
}

func (f *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handler
	return nil
}

func (f *fakeClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	f.unsubs = append(f.unsubs, topic)
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) SetOnConnect(callback func()) { f.onConnect = callback }

func (f *fakeClient) SetOnDisconnect(callback func(err error)) { f.onDisconnect = callback }

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeClient) published(topic string) []pub {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pub
	for _, p := range f.pubs {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeClient) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pubs)
}

type fakeStore struct {
	deviceID  string
	brokerURL string
	username  string
	password  string
	current   string

	schedMu  sync.Mutex
	schedule settings.RebootSchedule
}

func (f *fakeStore) DeviceID(context.Context) (string, error)   { return f.deviceID, nil }
func (f *fakeStore) BrokerURL(context.Context) (string, error)  { return f.brokerURL, nil }
func (f *fakeStore) Username(context.Context) (string, error)   { return f.username, nil }
func (f *fakeStore) Password(context.Context) (string, error)   { return f.password, nil }
func (f *fakeStore) CurrentURL(context.Context) (string, error) { return f.current, nil }
func (f *fakeStore) RebootSchedule(context.Context) (settings.RebootSchedule, error) {
	f.schedMu.Lock()
	defer f.schedMu.Unlock()
	return f.schedule, nil
}

func (f *fakeStore) SetRebootSchedule(_ context.Context, sched settings.RebootSchedule) error {
	f.setSchedule(sched)
	return nil
}

func (f *fakeStore) setSchedule(sched settings.RebootSchedule) {
	f.schedMu.Lock()
	f.schedule = sched
	f.schedMu.Unlock()
}

type dispatched struct {
	name    string
	payload string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
}

func (f *fakeDispatcher) Dispatch(_ context.Context, name string, raw []byte) command.Result {
	f.mu.Lock()
	f.calls = append(f.calls, dispatched{name, string(raw)})
	f.mu.Unlock()
	return command.OK("done " + name)
}

type fakeCollector struct{}

func (fakeCollector) Collect(currentURL string) map[string]any {
	snapshot := map[string]any{"deviceId": "kiosk-ab12cd34", "os": "linux"}
	if currentURL != "" {
		snapshot["currentUrl"] = currentURL
	}
	return snapshot
}

type mirrored struct {
	deviceID string
	fields   map[string]any
}

type fakeMirror struct {
	mu     sync.Mutex
	writes []mirrored
	events []string
}

func (f *fakeMirror) WriteTelemetry(deviceID string, fields map[string]any) {
	f.mu.Lock()
	f.writes = append(f.writes, mirrored{deviceID, fields})
	f.mu.Unlock()
}

func (f *fakeMirror) WriteEvent(_ string, event string) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func testBroker() BrokerConfig {
	return BrokerConfig{Host: "mq.example", Port: 1883, DeviceID: "kiosk-ab12cd34"}
}

func newTestManager(t *testing.T, cfg config.SessionConfig) (*Manager, *fakeClient, *fakeDispatcher) {
	t.Helper()

	client := newFakeClient()
	dispatcher := &fakeDispatcher{}
	connector := func(_ mqtt.Options) (Client, error) { return client, nil }

	m := NewManager(cfg, testBroker(), &fakeStore{deviceID: "kiosk-ab12cd34"}, dispatcher, fakeCollector{}, connector)
	return m, client, dispatcher
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStart_InvalidConfig(t *testing.T) {
	m := NewManager(config.SessionConfig{}, BrokerConfig{}, &fakeStore{}, &fakeDispatcher{}, fakeCollector{}, nil)

	if err := m.Start(); err != ErrInvalidBrokerConfig {
		t.Errorf("Start() error = %v, want ErrInvalidBrokerConfig", err)
	}
}

func TestStart_ConnectSequence(t *testing.T) {
	m, client, _ := newTestManager(t, config.SessionConfig{QoS: 1})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	status := client.published("devices/kiosk-ab12cd34/status")
	if len(status) != 1 {
		t.Fatalf("status publishes = %d, want 1", len(status))
	}
	if !status[0].retained {
		t.Error("status publish not retained")
	}
	if !strings.Contains(string(status[0].payload), `"status":"online"`) {
		t.Errorf("status payload = %s, want online", status[0].payload)
	}

	client.mu.Lock()
	_, subscribed := client.subs["devices/kiosk-ab12cd34/cmd/+"]
	client.mu.Unlock()
	if !subscribed {
		t.Error("command filter not subscribed")
	}

	events := client.published("devices/kiosk-ab12cd34/events")
	if len(events) != 1 || !strings.Contains(string(events[0].payload), "mqttConnected") {
		t.Errorf("events = %v, want one mqttConnected", events)
	}
}

func TestReconnect_Idempotent(t *testing.T) {
	m, client, _ := newTestManager(t, config.SessionConfig{QoS: 1, TelemetryInterval: time.Hour})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	waitFor(t, func() bool {
		return len(client.published("devices/kiosk-ab12cd34/telemetry")) >= 1
	})

	m.mu.Lock()
	firstTicker := m.telemetryStop
	m.mu.Unlock()

	// Simulated drop and reconnect.
	client.onDisconnect(errors.New("connection reset"))
	client.onConnect()

	m.mu.Lock()
	secondTicker := m.telemetryStop
	m.mu.Unlock()

	if firstTicker != secondTicker {
		t.Error("reconnect started a second telemetry ticker")
	}
	if got := len(client.published("devices/kiosk-ab12cd34/status")); got != 2 {
		t.Errorf("status publishes = %d, want 2 (initial + renewal)", got)
	}
}

func TestConnectNotification_Duplicated(t *testing.T) {
	m, client, _ := newTestManager(t, config.SessionConfig{QoS: 1})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	// The transport reports the initial connect both from Start and
	// through the registered callback; both may fire for the same
	// physical connection.
	client.onConnect()
	client.onConnect()

	if got := len(client.published("devices/kiosk-ab12cd34/status")); got != 1 {
		t.Errorf("status publishes = %d, want 1", got)
	}
	events := client.published("devices/kiosk-ab12cd34/events")
	if len(events) != 1 || !strings.Contains(string(events[0].payload), "mqttConnected") {
		t.Errorf("events = %d, want exactly one mqttConnected", len(events))
	}
}

func TestPublishTelemetry_Disconnected(t *testing.T) {
	m, client, _ := newTestManager(t, config.SessionConfig{QoS: 1})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	before := client.publishCount()
	client.setConnected(false)

	m.PublishTelemetry()
	m.PublishEvent("ignored", nil)

	if got := client.publishCount(); got != before {
		t.Errorf("publishes while disconnected = %d, want 0", got-before)
	}
}

func TestPublishTelemetry_Mirror(t *testing.T) {
	m, _, _ := newTestManager(t, config.SessionConfig{QoS: 1})
	mirror := &fakeMirror{}
	m.SetMirror(mirror)

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	m.PublishTelemetry()

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if len(mirror.writes) != 1 {
		t.Fatalf("mirror writes = %d, want 1", len(mirror.writes))
	}
	if mirror.writes[0].deviceID != "kiosk-ab12cd34" {
		t.Errorf("mirror deviceID = %q", mirror.writes[0].deviceID)
	}
}

func TestOnMessage_DispatchAndAck(t *testing.T) {
	m, client, dispatcher := newTestManager(t, config.SessionConfig{QoS: 1})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	client.mu.Lock()
	handler := client.subs["devices/kiosk-ab12cd34/cmd/+"]
	client.mu.Unlock()

	if err := handler("devices/kiosk-ab12cd34/cmd/loadUrl", []byte(`{"url":"https://x"}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	dispatcher.mu.Lock()
	calls := append([]dispatched(nil), dispatcher.calls...)
	dispatcher.mu.Unlock()
	if len(calls) != 1 || calls[0].name != "loadUrl" {
		t.Fatalf("dispatched = %v, want one loadUrl", calls)
	}

	acks := client.published("devices/kiosk-ab12cd34/cmd/loadUrl/ack")
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	body := string(acks[0].payload)
	if !strings.Contains(body, `"command":"loadUrl"`) || !strings.Contains(body, `"success":true`) {
		t.Errorf("ack payload = %s", body)
	}
	if acks[0].retained {
		t.Error("ack publish retained, want not retained")
	}
}

func TestOnMessage_IgnoresMalformedTopics(t *testing.T) {
	m, client, dispatcher := newTestManager(t, config.SessionConfig{QoS: 1})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	client.mu.Lock()
	handler := client.subs["devices/kiosk-ab12cd34/cmd/+"]
	client.mu.Unlock()

	for _, topic := range []string{
		"devices/kiosk-ab12cd34/status",
		"devices/kiosk-ab12cd34/cmd",
		"other/kiosk-ab12cd34/cmd/reboot",
	} {
		if err := handler(topic, []byte(`{}`)); err != nil {
			t.Errorf("handler(%s) error = %v", topic, err)
		}
	}

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.calls) != 0 {
		t.Errorf("dispatched = %v, want none", dispatcher.calls)
	}
}

func TestStop_PublishesOfflineAndCloses(t *testing.T) {
	m, client, _ := newTestManager(t, config.SessionConfig{QoS: 1, TelemetryInterval: time.Hour})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	status := client.published("devices/kiosk-ab12cd34/status")
	last := status[len(status)-1]
	if !strings.Contains(string(last.payload), `"status":"offline"`) {
		t.Errorf("last status = %s, want offline", last.payload)
	}
	if !last.retained {
		t.Error("offline status not retained")
	}

	client.mu.Lock()
	unsubs := append([]string(nil), client.unsubs...)
	client.mu.Unlock()
	if len(unsubs) != 1 || unsubs[0] != "devices/kiosk-ab12cd34/cmd/+" {
		t.Errorf("unsubscribes = %v, want command filter", unsubs)
	}

	client.mu.Lock()
	closed := client.closed
	client.mu.Unlock()
	if !closed {
		t.Error("client not closed")
	}

	// Second Stop is a no-op.
	if err := m.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
