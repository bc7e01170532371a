// Package influxdb mirrors device telemetry into InfluxDB for fleet
// analytics.
//
// It wraps the official influxdb-client-go v2 library with the
// agent's patterns for connection management, point writing, and
// health monitoring. The mirror is optional: when disabled in config
// the session simply publishes telemetry to the broker only.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "fleet",
//	    Bucket:  "kiosks",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteTelemetry("kiosk-ab12cd34", snapshot)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered
// via the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
