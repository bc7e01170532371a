package session

import (
	"encoding/json"
	"time"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// statusMessage is the retained device status on devices/{id}/status.
// The offline form doubles as the last-will payload.
type statusMessage struct {
	Status    string `json:"status"`
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
}

// eventMessage is a fire-and-forget notification on
// devices/{id}/events.
type eventMessage struct {
	Event     string         `json:"event"`
	DeviceID  string         `json:"deviceId"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// ackMessage is the command acknowledgment on
// devices/{id}/cmd/{command}/ack.
type ackMessage struct {
	Command   string         `json:"command"`
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// encodeSnapshot serializes a telemetry snapshot. Snapshots come
// from the collector as arbitrary maps, so this one can fail.
func encodeSnapshot(snapshot map[string]any) ([]byte, error) {
	return json.Marshal(snapshot)
}

// encodeStatus builds a status payload. The input structs contain
// only marshal-safe fields, so encoding cannot fail.
func encodeStatus(status, deviceID string) []byte {
	payload, _ := json.Marshal(statusMessage{
		Status:    status,
		DeviceID:  deviceID,
		Timestamp: time.Now().Unix(),
	})
	return payload
}

func encodeEvent(event, deviceID string, data map[string]any) []byte {
	payload, _ := json.Marshal(eventMessage{
		Event:     event,
		DeviceID:  deviceID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
	return payload
}

func encodeAck(command string, success bool, message string, data map[string]any) []byte {
	payload, _ := json.Marshal(ackMessage{
		Command:   command,
		Success:   success,
		Message:   message,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
	return payload
}
