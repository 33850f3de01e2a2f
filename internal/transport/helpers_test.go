package transport

import (
	"sync"
	"testing"

	"github.com/nerrad567/frame-transport/internal/infrastructure/mqtt"
)

// manualScheduler runs tasks only when the test asks, so one call to
// runAll is one deterministic scheduling turn sequence.
type manualScheduler struct {
	queue   []func()
	started bool
	stopped bool
}

func (s *manualScheduler) Post(task func()) {
	if s.stopped {
		return
	}
	s.queue = append(s.queue, task)
}

func (s *manualScheduler) Start() { s.started = true }
func (s *manualScheduler) Stop() { s.stopped = true }

// runAll runs tasks until the queue is empty, including tasks posted by
// tasks.
func (s *manualScheduler) runAll() {
	for len(s.queue) > 0 {
		task := s.queue[0]
		s.queue = s.queue[1:]
		task()
	}
}

type publication struct {
	topic   string
	payload []byte
	qos     byte
}

// fakeConn records broker calls and lets tests raise broker signals.
type fakeConn struct {
	opts     mqtt.Options
	handlers mqtt.Handlers

	subscribed   []string
	published    []publication
	disconnects  int
	ended        bool
	publishErr   error
	subscribeErr error
}

func (c *fakeConn) Subscribe(topic string, _ byte) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.subscribed = append(c.subscribed, topic)
	return nil
}

func (c *fakeConn) Publish(topic string, payload []byte, qos byte) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, publication{topic: topic, payload: payload, qos: qos})
	return nil
}

// Disconnect behaves like mqtt.Conn: the first call reports a close signal.
func (c *fakeConn) Disconnect() {
	c.disconnects++
	if c.ended {
		return
	}
	c.ended = true
	c.handlers.OnClose()
}

func (c *fakeConn) connect() { c.handlers.OnConnect() }
func (c *fakeConn) lose() { c.handlers.OnClose() }
func (c *fakeConn) fail(err error) { c.handlers.OnError(err) }
func (c *fakeConn) deliver(topic, payload string) { c.handlers.OnMessage(topic, []byte(payload)) }

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(typ EventType) int {
	n := 0
	for _, got := range r.types() {
		if got == typ {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

// countingMetrics records telemetry calls.
type countingMetrics struct {
	publications []int
	received     []int
	events       []string
}

func (m *countingMetrics) PublicationFlushed(_ string, n int) { m.publications = append(m.publications, n) }
func (m *countingMetrics) FrameReceived(_ string, n int) { m.received = append(m.received, n) }
func (m *countingMetrics) TransportEvent(_ string, ev string) { m.events = append(m.events, ev) }

// harness wires an MQTT transport to a fake connection and manual scheduler.
type harness struct {
	t     *MQTT
	conn  *fakeConn
	sched *manualScheduler
	rec   *recorder
}

func newHarness(tb testing.TB, opts Options, fns ...Option) *harness {
	tb.Helper()

	h := &harness{
		conn:  &fakeConn{},
		sched: &manualScheduler{},
		rec:   &recorder{},
	}

	dialer := func(o mqtt.Options, handlers mqtt.Handlers, _ Logger) (Conn, error) {
		h.conn.opts = o
		h.conn.handlers = handlers
		return h.conn, nil
	}

	fns = append([]Option{WithDialer(dialer), WithScheduler(h.sched)}, fns...)
	tr, err := NewMQTT(opts, fns...)
	if err != nil {
		tb.Fatalf("NewMQTT() error = %v", err)
	}
	tr.Subscribe(h.rec.handle)
	h.t = tr
	return h
}

// open drives the transport to READY and clears recorded events.
func (h *harness) open() {
	h.conn.connect()
	h.sched.runAll()
	h.rec.reset()
}

func testOptions() Options {
	return Options{
		URL:    "tcp://127.0.0.1:1883",
		Device: "abc",
	}
}

func equalTypes(got, want []EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
