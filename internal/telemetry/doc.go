// Package telemetry collects device health snapshots for periodic
// publishing over MQTT.
//
// A snapshot is a flat map of JSON-friendly fields: identity
// (deviceId, appVersion), platform (os, arch, hostname), resource
// usage (memory, storage, network) and uptime. Each field is gathered
// independently so one failing probe never suppresses the others.
package telemetry
