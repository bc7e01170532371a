package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry mirrors one telemetry snapshot as a point in the
// device_telemetry measurement.
//
// The snapshot map is the same structure the session publishes to the
// broker. Numeric and boolean values become fields; strings become
// fields too, except low-cardinality identity values that work better
// as tags. Non-scalar values are skipped, as are the per-snapshot
// timestamp fields (the point carries its own timestamp).
//
// The write is non-blocking; data is batched and sent asynchronously.
// Implements the session manager's Mirror interface.
func (c *Client) WriteTelemetry(deviceID string, snapshot map[string]any) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
	}
	fields := make(map[string]interface{}, len(snapshot))

	for key, value := range snapshot {
		switch key {
		case "deviceId", "timestamp":
			continue
		case "os", "arch", "hostname", "appVersion":
			if s, ok := value.(string); ok {
				tags[key] = s
				continue
			}
		}

		switch v := value.(type) {
		case float64, int, int64, uint64, bool, string:
			fields[key] = v
		}
	}

	if len(fields) == 0 {
		return
	}

	point := write.NewPoint("device_telemetry", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteEvent mirrors a device event as a point in the device_events
// measurement. Only the event name is recorded; event data stays on
// the broker.
func (c *Client) WriteEvent(deviceID string, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_events",
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}
