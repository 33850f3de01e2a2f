package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Connection constants.
const (
	// DefaultKeepAlive is the keepalive interval for the connection.
	DefaultKeepAlive = 15 * time.Second

	// DefaultReconnectPeriod is the fixed delay between reconnect attempts.
	DefaultReconnectPeriod = 1 * time.Second

	// DefaultConnectTimeout is the maximum time to wait for one connection attempt.
	DefaultConnectTimeout = 30 * time.Second

	// defaultPublishTimeout bounds how long a background watcher waits on a token.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// clientIDPrefix marks client identities created by this transport.
	clientIDPrefix = "_"

	// clientIDSuffixLen is the number of random characters appended in multi mode.
	clientIDSuffixLen = 8

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options configures a broker connection.
type Options struct {
	// URL is the broker address (tcp://, ssl://, ws://, wss://, mqtt:// or mqtts://).
	URL string

	// ClientID identifies the session to the broker. See ClientID.
	ClientID string

	Username string
	Password string

	KeepAlive      time.Duration
	ConnectTimeout time.Duration

	// AutoReconnect retries the initial connection and reconnects after a
	// lost connection every ReconnectPeriod.
	AutoReconnect   bool
	ReconnectPeriod time.Duration
}

// ClientID derives the broker client identity for a device.
//
// The identity is "_<device>". With multi set, ".<random>" is appended so
// that several sessions for the same device do not evict each other.
func ClientID(device string, multi bool) string {
	id := clientIDPrefix + device
	if multi {
		id += "." + randomID()
	}
	return id
}

// randomID returns a short random identifier.
func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:clientIDSuffixLen]
}

// withDefaults fills zero durations with the package defaults.
func (o Options) withDefaults() Options {
	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReconnectPeriod == 0 {
		o.ReconnectPeriod = DefaultReconnectPeriod
	}
	return o
}

// validate checks the options required to reach a broker.
func (o Options) validate() error {
	if o.URL == "" {
		return fmt.Errorf("%w: broker url is required", ErrInvalidOptions)
	}
	if o.ClientID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidOptions)
	}
	return nil
}

// buildClientOptions creates paho MQTT options.
//
// This configures:
//   - Broker URL and client identity
//   - Authentication credentials (if provided)
//   - Keepalive and connect timeout
//   - Fixed-period reconnection (only when AutoReconnect is set)
//   - TLS for ssl://, mqtts:// and wss:// brokers
//   - Clean session mode
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(o.URL)
	opts.SetClientID(o.ClientID)

	if o.Username != "" || o.Password != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	// No persistent session on the broker; nothing survives a restart.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(o.AutoReconnect)
	opts.SetConnectRetry(o.AutoReconnect)
	if o.AutoReconnect {
		opts.SetConnectRetryInterval(o.ReconnectPeriod)
		opts.SetMaxReconnectInterval(o.ReconnectPeriod)
	}

	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetKeepAlive(o.KeepAlive)

	// Handlers run one at a time in arrival order.
	opts.SetOrderMatters(true)

	if isSecureURL(o.URL) {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// isSecureURL reports whether the broker scheme implies TLS.
func isSecureURL(url string) bool {
	for _, scheme := range []string{"ssl://", "tls://", "mqtts://", "wss://"} {
		if strings.HasPrefix(strings.ToLower(url), scheme) {
			return true
		}
	}
	return false
}
