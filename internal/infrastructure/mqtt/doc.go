// Package mqtt provides the broker connection used by the frame transport.
//
// This package manages:
//   - Connection to an MQTT broker with optional fixed-period reconnect
//   - Fire-and-forget publishing
//   - Topic subscriptions routed to a single message handler
//   - Client identity and per-device topic naming
//
// # Architecture
//
// A Conn never blocks its owner. It translates paho's callbacks and tokens
// into four signals (connect, message, close, error) delivered through
// Handlers, which the transport layer turns into its own event stream.
//
//	transport.MQTT ↔ mqtt.Conn ↔ MQTT Broker ↔ Device
//
// # Topics
//
// Each device uses three topics:
//
//	<device>/PING    frames sent to the device
//	<device>/PONG    frames sent by the device
//	<device>/STATUS  device health ("OK" when healthy)
//
// # Security Considerations
//
//   - ssl://, mqtts:// and wss:// brokers are reached over TLS 1.2+
//   - Credentials are only sent when a login or password is configured
//
// # Usage
//
//	conn, err := mqtt.Dial(mqtt.Options{
//	    URL:      "tcp://localhost:1883",
//	    ClientID: mqtt.ClientID("abc", false),
//	}, mqtt.Handlers{
//	    OnConnect: func() { log.Print("connected") },
//	    OnMessage: func(topic string, payload []byte) { log.Print(topic) },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Disconnect()
package mqtt
