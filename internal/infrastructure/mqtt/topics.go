package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the kiosk wire protocol.
//
// Device topics use the scheme: devices/{deviceId}/{category}[/...]
// Provisioning topics use:      provision/{customerCode}/...
const (
	// TopicPrefixDevices is the base for all per-device topics.
	TopicPrefixDevices = "devices"

	// TopicPrefixProvision is the base for provisioning handshake topics.
	TopicPrefixProvision = "provision"
)

// commandTopicParts is the exact number of segments in an inbound
// command topic: devices/{deviceId}/cmd/{command}.
const commandTopicParts = 4

// Topics provides builders for kiosk MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// All builders are pure and deterministic: no I/O, same output for the
// same input on every call.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.Status("kiosk-a1b2c3d4")
//	// Returns: "devices/kiosk-a1b2c3d4/status"
type Topics struct{}

// Status returns the retained device status topic.
// Also used as the Last Will and Testament topic.
//
// Example: devices/kiosk-a1b2c3d4/status
func (Topics) Status(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevices, deviceID)
}

// Telemetry returns the retained device telemetry topic.
//
// Example: devices/kiosk-a1b2c3d4/telemetry
func (Topics) Telemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", TopicPrefixDevices, deviceID)
}

// Events returns the device event topic (not retained).
//
// Example: devices/kiosk-a1b2c3d4/events
func (Topics) Events(deviceID string) string {
	return fmt.Sprintf("%s/%s/events", TopicPrefixDevices, deviceID)
}

// CommandFilter returns the subscription pattern for inbound commands.
// The final wildcard segment carries the command name.
//
// Pattern: devices/kiosk-a1b2c3d4/cmd/+
func (Topics) CommandFilter(deviceID string) string {
	return fmt.Sprintf("%s/%s/cmd/+", TopicPrefixDevices, deviceID)
}

// CommandAck returns the acknowledgment topic for a single command.
//
// Example: devices/kiosk-a1b2c3d4/cmd/loadUrl/ack
func (Topics) CommandAck(deviceID, command string) string {
	return fmt.Sprintf("%s/%s/cmd/%s/ack", TopicPrefixDevices, deviceID, command)
}

// ProvisionRequest returns the topic a device publishes its
// provisioning request to.
//
// Example: provision/4821/request
func (Topics) ProvisionRequest(customerCode string) string {
	return fmt.Sprintf("%s/%s/request", TopicPrefixProvision, customerCode)
}

// ProvisionResponse returns the topic a device listens on for its
// provisioning response. Namespacing by both customer code and device
// ID lets the shared broker multiplex many concurrent provisioning
// attempts without cross-talk.
//
// Example: provision/4821/response/kiosk-a1b2c3d4
func (Topics) ProvisionResponse(customerCode, deviceID string) string {
	return fmt.Sprintf("%s/%s/response/%s", TopicPrefixProvision, customerCode, deviceID)
}

// ParseCommandTopic extracts the command name from an inbound command
// topic. It accepts only exactly four-segment topics of the form
// devices/{deviceId}/cmd/{command}; anything else returns ok=false.
func ParseCommandTopic(topic string) (command string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != commandTopicParts {
		return "", false
	}
	if parts[0] != TopicPrefixDevices || parts[2] != "cmd" {
		return "", false
	}
	if parts[1] == "" || parts[3] == "" {
		return "", false
	}
	return parts[3], true
}
