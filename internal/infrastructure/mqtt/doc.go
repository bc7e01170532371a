// Package mqtt provides MQTT client connectivity for the kiosk agent.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) registration for offline detection
//   - Canonical topic naming for the device and provisioning protocols
//
// # Architecture
//
// The kiosk fleet uses MQTT as the control channel between devices and
// the admin backend. Two components own a connection at different times:
// the provisioning engine during the initial handshake, and the session
// manager for the rest of the device's life. Only one of them holds a
// connection at a time.
//
//	Kiosk Agent ↔ MQTT Broker ↔ Admin Backend
//
// # Security Considerations
//
//   - TLS is required for production deployments (Options.TLS)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(mqtt.Options{
//	    Host:     "broker.example.com",
//	    Port:     1883,
//	    ClientID: "kiosk-a1b2c3d4",
//	    QoS:      1,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.CommandFilter("kiosk-a1b2c3d4"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
