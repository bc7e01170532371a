// Package config provides configuration loading for the kiosk agent.
//
// Configuration is loaded from a YAML file with three layers of precedence:
//
//  1. Hardcoded defaults
//  2. YAML file values
//  3. Environment variables (KIOSK_SECTION_KEY)
//
// The provisioning section describes the shared broker an unprovisioned
// device contacts to exchange its customer code for a device-specific
// broker configuration. The session section tunes the long-lived device
// connection established afterwards. Secrets (broker credentials,
// InfluxDB token) should be supplied via environment variables rather
// than committed to the config file.
package config
