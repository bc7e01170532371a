package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options describes a single broker connection.
//
// The provisioning engine and the session manager build these
// differently: provisioning connects with a throwaway client ID and no
// will message; the session registers a retained offline status as its
// Last Will and Testament.
type Options struct {
	// Host and Port locate the broker.
	Host string
	Port int

	// TLS enables an ssl:// connection with TLS 1.2 minimum.
	TLS bool

	// ClientID identifies this connection to the broker.
	ClientID string

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// QoS is the default QoS used by PublishRetained.
	QoS byte

	// Will, if non-nil, is registered as the Last Will and Testament.
	Will *WillMessage

	// ReconnectInitialDelay and ReconnectMaxDelay bound the automatic
	// reconnect backoff, in seconds. Zero values use paho defaults.
	ReconnectInitialDelay int
	ReconnectMaxDelay     int
}

// WillMessage is a Last Will and Testament registration.
// The broker publishes it on the client's behalf if the connection
// drops uncleanly.
type WillMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// buildClientOptions creates paho MQTT options from connection Options.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
//   - Clean session mode
//   - Last Will and Testament (if set)
func buildClientOptions(opts Options) *pahomqtt.ClientOptions {
	pahoOpts := pahomqtt.NewClientOptions()

	// Broker URL
	scheme := "tcp"
	if opts.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, opts.Host, opts.Port)
	pahoOpts.AddBroker(brokerURL)

	// Client identification
	pahoOpts.SetClientID(opts.ClientID)

	// Authentication (if credentials provided)
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
		pahoOpts.SetPassword(opts.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	pahoOpts.SetCleanSession(true)

	// Auto-reconnect with exponential backoff
	pahoOpts.SetAutoReconnect(true)
	if opts.ReconnectInitialDelay > 0 {
		pahoOpts.SetConnectRetry(true)
		pahoOpts.SetConnectRetryInterval(time.Duration(opts.ReconnectInitialDelay) * time.Second)
	}
	if opts.ReconnectMaxDelay > 0 {
		pahoOpts.SetMaxReconnectInterval(time.Duration(opts.ReconnectMaxDelay) * time.Second)
	}

	// Connection timeout
	pahoOpts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	pahoOpts.SetKeepAlive(defaultKeepAlive)

	// TLS configuration if enabled
	if opts.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		pahoOpts.SetTLSConfig(tlsConfig)
	}

	// Last Will and Testament
	if opts.Will != nil {
		pahoOpts.SetBinaryWill(opts.Will.Topic, opts.Will.Payload, opts.Will.QoS, opts.Will.Retained)
	}

	return pahoOpts
}
