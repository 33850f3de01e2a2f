package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Conn is a single broker connection owned by one transport.
//
// Unlike a request/response client, Conn never blocks its caller: connection
// progress, incoming messages and failures are reported through Handlers.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Handlers are invoked from paho goroutines and must not block.
type Conn struct {
	client   pahomqtt.Client
	handlers Handlers

	// ended is set once Disconnect has been called.
	ended atomic.Bool

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handlers receives the connection signals. Nil fields are ignored.
type Handlers struct {
	// OnConnect fires after every successful (re)connection.
	OnConnect func()

	// OnMessage fires for every message on a subscribed topic.
	OnMessage func(topic string, payload []byte)

	// OnClose fires when the connection is lost or ended.
	OnClose func()

	// OnError fires for connection and delivery failures.
	OnError func(err error)
}

// Dial starts connecting to the broker and returns immediately.
//
// The outcome is reported through h: OnConnect on success, OnError followed
// by OnClose when the attempt fails. With AutoReconnect the attempt is
// retried until it succeeds or Disconnect is called.
//
// Returns:
//   - *Conn: Connection handle, not yet connected
//   - error: ErrInvalidOptions if URL or ClientID are missing
func Dial(o Options, h Handlers) (*Conn, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	o = o.withDefaults()

	c := &Conn{handlers: h}

	opts := buildClientOptions(o)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.handleMessage(msg)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	go c.awaitConnect(token)

	return c, nil
}

// awaitConnect reports a failed connection attempt.
func (c *Conn) awaitConnect(token pahomqtt.Token) {
	token.Wait()
	err := token.Error()
	if err == nil || c.ended.Load() {
		return
	}

	c.fireError(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
	c.fireClose()
}

// handleConnect is called when the connection is established.
func (c *Conn) handleConnect() {
	if c.ended.Load() {
		return
	}
	if h := c.handlers.OnConnect; h != nil {
		h()
	}
}

// handleConnectionLost is called when an established connection drops.
func (c *Conn) handleConnectionLost(err error) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
	c.fireClose()
}

// handleMessage forwards a received message with panic recovery.
func (c *Conn) handleMessage(msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}
	}()

	if h := c.handlers.OnMessage; h != nil {
		h(msg.Topic(), msg.Payload())
	}
}

func (c *Conn) fireClose() {
	if h := c.handlers.OnClose; h != nil {
		h()
	}
}

func (c *Conn) fireError(err error) {
	if h := c.handlers.OnError; h != nil {
		h(err)
	}
}

// Disconnect ends the session and stops any reconnection.
//
// The first call reports OnClose once the client has been told to
// disconnect; later calls are no-ops.
func (c *Conn) Disconnect() {
	if c.ended.Swap(true) {
		return
	}

	if c.client != nil {
		c.client.Disconnect(defaultDisconnectQuiesce)
	}
	c.fireClose()
}

// IsConnected returns the current connection state.
func (c *Conn) IsConnected() bool {
	return c.client != nil && !c.ended.Load() && c.client.IsConnected()
}

// SetLogger sets a logger for error and panic logging.
// If not set, failures are only reported through Handlers.
func (c *Conn) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Conn) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// watch reports a failed subscribe through OnError without blocking the caller.
func (c *Conn) watch(token pahomqtt.Token, topic string) {
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			if logger := c.getLogger(); logger != nil {
				logger.Debug("MQTT subscribe still pending", "topic", topic)
			}
			return
		}
		err := token.Error()
		if err == nil || c.ended.Load() {
			return
		}
		if errors.Is(err, pahomqtt.ErrNotConnected) {
			err = ErrNotConnected
		}
		c.fireError(fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err))
	}()
}
