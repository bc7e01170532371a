package session

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

const (
	defaultPlainPort = 1883
	defaultTLSPort   = 8883

	clientIDSuffixLen = 8
)

// BrokerConfig is the persisted broker binding the session connects
// with. It is written once by the provisioning engine and loaded from
// the settings store on every start.
type BrokerConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	DeviceID string
}

// IsValid reports whether the config is sufficient to start a
// session. Host and DeviceID are the two fields nothing can default.
func (c BrokerConfig) IsValid() bool {
	return c.Host != "" && c.DeviceID != ""
}

// ClientID derives a broker client identifier. It embeds the device
// ID for traceability but is unique per connection attempt, so a
// half-dead previous session can never kick the new one off the
// broker.
func (c BrokerConfig) ClientID() string {
	return c.DeviceID + "-" + uuid.NewString()[:clientIDSuffixLen]
}

// ParseBrokerURL splits a broker URL of the form scheme://host:port
// into its parts. Accepted schemes: tcp and mqtt (plain), ssl, tls
// and mqtts (TLS). The port defaults per scheme when omitted.
func ParseBrokerURL(raw string) (host string, port int, useTLS bool, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("parsing broker URL %q: %w", raw, err)
	}

	switch parsed.Scheme {
	case "tcp", "mqtt":
		useTLS = false
	case "ssl", "tls", "mqtts":
		useTLS = true
	default:
		return "", 0, false, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBrokerURL, parsed.Scheme)
	}

	host = parsed.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("%w: missing host in %q", ErrInvalidBrokerURL, raw)
	}

	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("%w: bad port in %q", ErrInvalidBrokerURL, raw)
		}
	} else if useTLS {
		port = defaultTLSPort
	} else {
		port = defaultPlainPort
	}

	return host, port, useTLS, nil
}

// LoadBrokerConfig assembles the session broker config from the
// settings store.
func LoadBrokerConfig(ctx context.Context, store Settings) (BrokerConfig, error) {
	rawURL, err := store.BrokerURL(ctx)
	if err != nil {
		return BrokerConfig{}, fmt.Errorf("loading broker URL: %w", err)
	}
	if rawURL == "" {
		return BrokerConfig{}, ErrNotConfigured
	}

	host, port, useTLS, err := ParseBrokerURL(rawURL)
	if err != nil {
		return BrokerConfig{}, err
	}

	deviceID, err := store.DeviceID(ctx)
	if err != nil {
		return BrokerConfig{}, fmt.Errorf("loading device ID: %w", err)
	}
	username, err := store.Username(ctx)
	if err != nil {
		return BrokerConfig{}, fmt.Errorf("loading username: %w", err)
	}
	password, err := store.Password(ctx)
	if err != nil {
		return BrokerConfig{}, fmt.Errorf("loading password: %w", err)
	}

	return BrokerConfig{
		Host:     host,
		Port:     port,
		TLS:      useTLS,
		Username: username,
		Password: password,
		DeviceID: deviceID,
	}, nil
}
