package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/frame-transport/internal/infrastructure/mqtt"
)

// Name is the registry name of the MQTT transport.
const Name = "mqtt"

// statusOK is the device status meaning healthy.
const statusOK = "OK"

// topicOverhead accounts for topic framing in each publication, on top of
// the command topic itself.
const topicOverhead = 4

// qosFireAndForget is used for every publication and subscription.
const qosFireAndForget = 0

func init() {
	Register(Name, func(opts Options, fns ...Option) (Transport, error) {
		return NewMQTT(opts, fns...)
	})
}

// Conn is the broker connection a transport owns.
type Conn interface {
	Subscribe(topic string, qos byte) error
	Publish(topic string, payload []byte, qos byte) error
	Disconnect()
}

// Dialer opens a broker connection that reports its signals to h.
type Dialer func(opts mqtt.Options, h mqtt.Handlers, logger Logger) (Conn, error)

// dialMQTT is the default Dialer backed by paho.
func dialMQTT(opts mqtt.Options, h mqtt.Handlers, logger Logger) (Conn, error) {
	conn, err := mqtt.Dial(opts, h)
	if err != nil {
		return nil, err
	}
	conn.SetLogger(logger)
	return conn, nil
}

// State is the lifecycle state of a transport.
type State int32

// Transport lifecycle states.
const (
	StateConnecting State = iota
	StateReady
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MQTT carries frames to and from one device over an MQTT broker.
//
// Frames passed to Send are coalesced: every frame sent before the event
// loop's next turn goes out in one publication on <device>/PING, unless
// adding a frame would push the publication past MaxPacketSize, in which
// case the frames buffered so far are published first. Publications on
// <device>/PONG are forwarded as EventMessage, and <device>/STATUS drives
// EventReady and EventError.
//
// Thread Safety:
//   - Send, Close, IsReady, State and Subscribe are safe for concurrent use.
//   - All other state is owned by the event loop goroutine.
type MQTT struct {
	opts    Options
	topics  mqtt.Topics
	sched   Scheduler
	logger  Logger
	metrics Metrics
	events  emitter

	ready atomic.Bool
	state atomic.Int32
	done  chan struct{}

	// Owned by the event loop.
	conn         Conn
	buf          []byte
	flushPending bool
	flushSeq     uint64
	status       string
	closing      bool

	closeOnce sync.Once
}

// NewMQTT validates opts, starts connecting and returns immediately.
//
// Progress is reported through events: EventOpen once the broker accepts
// the connection, EventReady once the device reports "OK".
//
// Returns:
//   - *MQTT: Transport in StateConnecting
//   - error: ErrInvalidOptions, or the dialer's error
func NewMQTT(opts Options, fns ...Option) (*MQTT, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	s := buildSettings(fns)

	t := &MQTT{
		opts:    opts,
		topics:  mqtt.Topics{Device: opts.Device},
		sched:   s.scheduler,
		logger:  s.logger,
		metrics: s.metrics,
		done:    make(chan struct{}),
	}
	t.state.Store(int32(StateConnecting))

	// Signals arrive on broker goroutines and are queued until the loop
	// starts below, after conn has been stored.
	conn, err := s.dialer(opts.brokerOptions(), mqtt.Handlers{
		OnConnect: func() { t.sched.Post(t.handleConnect) },
		OnMessage: func(topic string, payload []byte) {
			t.sched.Post(func() { t.handleMessage(topic, payload) })
		},
		OnClose: func() { t.sched.Post(t.handleClose) },
		OnError: func(err error) { t.sched.Post(func() { t.handleError(err) }) },
	}, s.logger)
	if err != nil {
		s.scheduler.Stop()
		return nil, fmt.Errorf("dialing broker: %w", err)
	}
	t.conn = conn
	t.sched.Start()

	t.logger.Debug("transport connecting",
		"url", opts.URL,
		"device", opts.Device,
		"auto_reconnect", opts.AutoReconnect,
	)

	return t, nil
}

// Send queues payload for the device. The slice is copied, so the caller
// may reuse it immediately.
func (t *MQTT) Send(payload []byte) {
	frame := append([]byte(nil), payload...)
	t.sched.Post(func() { t.send(frame) })
}

// Close ends the session.
//
// The broker connection is terminated and the resulting close signal emits
// EventError followed by EventClose. Buffered frames that were not yet
// published are discarded. Close on a closed transport does nothing.
func (t *MQTT) Close() {
	t.sched.Post(func() {
		if t.conn == nil {
			return
		}
		t.closing = true
		t.conn.Disconnect()
	})
}

// IsReady reports whether the broker connection is established.
func (t *MQTT) IsReady() bool {
	return t.ready.Load()
}

// State returns the current lifecycle state.
func (t *MQTT) State() State {
	return State(t.state.Load())
}

// Subscribe registers h for all events.
func (t *MQTT) Subscribe(h Handler) func() {
	return t.events.subscribe(h)
}

// Done is closed after EventClose has been delivered.
func (t *MQTT) Done() <-chan struct{} {
	return t.done
}

// Device returns the device identifier.
func (t *MQTT) Device() string {
	return t.opts.Device
}

// =============================================================================
// Event loop handlers
// =============================================================================

func (t *MQTT) handleConnect() {
	if t.conn == nil {
		return
	}

	t.ready.Store(true)
	t.state.Store(int32(StateReady))
	t.emit(Event{Type: EventOpen})

	for _, topic := range []string{t.topics.Reply(), t.topics.Status()} {
		if err := t.conn.Subscribe(topic, qosFireAndForget); err != nil {
			t.emit(Event{Type: EventError, Err: err})
		}
	}
}

func (t *MQTT) handleMessage(topic string, payload []byte) {
	if t.conn == nil {
		return
	}

	switch mqtt.LastSegment(topic) {
	case mqtt.SegmentStatus:
		previous := t.status
		t.status = string(payload)
		t.detectStatusChange(t.status, previous)
	default:
		t.metrics.FrameReceived(t.opts.Device, len(payload))
		t.emit(Event{Type: EventMessage, Payload: payload})
	}
}

// detectStatusChange emits only when the device status actually changes,
// so repeated status publications do not produce repeated events.
func (t *MQTT) detectStatusChange(current, previous string) {
	if current == previous {
		return
	}

	t.logger.Debug("device status changed",
		"device", t.opts.Device,
		"from", previous,
		"to", current,
	)

	if current == statusOK {
		t.emit(Event{Type: EventReady})
		return
	}
	t.emit(Event{Type: EventError, Err: fmt.Errorf("%w: device status %q", errStatusFault, current)})
}

func (t *MQTT) handleClose() {
	if t.conn == nil {
		return
	}

	t.emit(Event{Type: EventError, Err: errDisconnected})

	if t.ready.Load() || t.closing {
		t.release()
	}
}

func (t *MQTT) handleError(err error) {
	if t.conn == nil {
		return
	}
	t.emit(Event{Type: EventError, Err: err})
}

// release tears the session down and emits EventClose. It runs at most once.
func (t *MQTT) release() {
	conn := t.conn
	t.conn = nil
	t.ready.Store(false)
	t.state.Store(int32(StateClosed))

	t.cancelFlush()
	if n := len(t.buf); n > 0 {
		t.logger.Debug("discarding unsent frames", "device", t.opts.Device, "bytes", n)
	}
	t.buf = nil

	// Stops paho's reconnect loop; its close signal is ignored above.
	conn.Disconnect()

	t.emit(Event{Type: EventClose})

	t.closeOnce.Do(func() {
		close(t.done)
		t.sched.Stop()
	})
}

// =============================================================================
// Outbound buffering
// =============================================================================

func (t *MQTT) send(frame []byte) {
	if t.conn == nil {
		t.logger.Debug("dropping frame sent after close", "device", t.opts.Device, "bytes", len(frame))
		return
	}

	overhead := len(t.topics.Command()) + topicOverhead

	if t.opts.StrictPacketSize && len(frame)+overhead > t.opts.MaxPacketSize {
		t.emit(Event{
			Type: EventError,
			Err: fmt.Errorf("%w: %d bytes, limit %d", ErrPacketTooLarge,
				len(frame)+overhead, t.opts.MaxPacketSize),
		})
		return
	}

	if len(t.buf)+len(frame)+overhead > t.opts.MaxPacketSize {
		t.flush()
	}

	t.buf = append(t.buf, frame...)

	if !t.flushPending {
		t.flushPending = true
		t.flushSeq++
		seq := t.flushSeq
		t.sched.Post(func() { t.deferredFlush(seq) })
	}
}

// deferredFlush runs one turn after the first buffered send. A flush that
// was overtaken by a forced flush or by close is stale and does nothing.
func (t *MQTT) deferredFlush(seq uint64) {
	if !t.flushPending || seq != t.flushSeq {
		return
	}
	t.flush()
}

// flush publishes the buffer as one publication and clears it.
func (t *MQTT) flush() {
	payload := t.buf
	t.buf = nil
	t.cancelFlush()

	if len(payload) == 0 || t.conn == nil {
		return
	}

	if err := t.conn.Publish(t.topics.Command(), payload, qosFireAndForget); err != nil {
		t.logger.Warn("publish failed",
			"device", t.opts.Device,
			"bytes", len(payload),
			"error", err,
		)
		return
	}
	t.metrics.PublicationFlushed(t.opts.Device, len(payload))
}

func (t *MQTT) cancelFlush() {
	t.flushPending = false
	t.flushSeq++
}

func (t *MQTT) emit(ev Event) {
	t.metrics.TransportEvent(t.opts.Device, ev.Type.String())
	t.events.emit(ev)
}
