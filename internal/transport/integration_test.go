//go:build integration

package transport_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/frame-transport/internal/infrastructure/config"
	"github.com/nerrad567/frame-transport/internal/simulator"
	"github.com/nerrad567/frame-transport/internal/transport"
)

// End-to-end tests: a real paho connection against the embedded simulator.
//
// Run with:
//   go test -tags=integration -v ./internal/transport/...

const eventTimeout = 5 * time.Second

func startSimulator(t *testing.T, device string) (*simulator.Broker, *simulator.Device) {
	t.Helper()
	broker, err := simulator.Start(config.SimulatorConfig{Host: "127.0.0.1"}, nil)
	if err != nil {
		t.Fatalf("simulator.Start() error = %v", err)
	}
	t.Cleanup(func() { broker.Close() })

	d, err := broker.AttachDevice(device)
	if err != nil {
		t.Fatalf("AttachDevice() error = %v", err)
	}
	return broker, d
}

func open(t *testing.T, url, device string) (*transport.MQTT, <-chan transport.Event) {
	t.Helper()

	tr, err := transport.NewMQTT(transport.Options{
		URL:            url,
		Device:         device,
		ConnectTimeout: eventTimeout,
	})
	if err != nil {
		t.Fatalf("NewMQTT() error = %v", err)
	}

	events := make(chan transport.Event, 64)
	tr.Subscribe(func(ev transport.Event) { events <- ev })
	t.Cleanup(tr.Close)
	return tr, events
}

func expect(t *testing.T, events <-chan transport.Event, want transport.EventType) transport.Event {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if ev.Type == want {
				return ev
			}
			t.Logf("skipping %s while waiting for %s (err=%v)", ev.Type, want, ev.Err)
		case <-time.After(eventTimeout):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestIntegration_OpenReadyEcho(t *testing.T) {
	broker, device := startSimulator(t, "abc")
	if err := device.SetStatus("OK"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	tr, events := open(t, broker.URL(), "abc")

	expect(t, events, transport.EventOpen)
	expect(t, events, transport.EventReady)
	if !tr.IsReady() {
		t.Error("IsReady() = false after OPEN")
	}

	tr.Send([]byte{0x01, 0x02})
	tr.Send([]byte{0x03})

	// The sends may or may not share a loop turn, so collect echoes until
	// every byte is back.
	var echoed []byte
	for len(echoed) < 3 {
		ev := expect(t, events, transport.EventMessage)
		echoed = append(echoed, ev.Payload...)
	}
	if !bytes.Equal(echoed, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("echo = %x, want 010203", echoed)
	}
}

func TestIntegration_StatusFault(t *testing.T) {
	broker, device := startSimulator(t, "fault1")
	if err := device.SetStatus("OK"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	_, events := open(t, broker.URL(), "fault1")
	expect(t, events, transport.EventReady)

	if err := device.SetStatus("FAULT"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	ev := expect(t, events, transport.EventError)
	if !errors.Is(ev.Err, transport.ErrBoardConnection) {
		t.Errorf("error = %v, want ErrBoardConnection", ev.Err)
	}
}

func TestIntegration_BrokerDropsClient(t *testing.T) {
	broker, _ := startSimulator(t, "drop1")

	tr, events := open(t, broker.URL(), "drop1")
	expect(t, events, transport.EventOpen)

	if !broker.DisconnectClient("_drop1") {
		t.Fatalf("DisconnectClient() = false, clients = %v", broker.ClientIDs())
	}

	expect(t, events, transport.EventError)
	expect(t, events, transport.EventClose)

	select {
	case <-tr.Done():
	case <-time.After(eventTimeout):
		t.Fatal("Done() not closed after CLOSE")
	}
	if tr.State() != transport.StateClosed {
		t.Errorf("State() = %v, want CLOSED", tr.State())
	}
}

func TestIntegration_Close(t *testing.T) {
	broker, _ := startSimulator(t, "close1")

	tr, events := open(t, broker.URL(), "close1")
	expect(t, events, transport.EventOpen)

	tr.Close()
	expect(t, events, transport.EventClose)

	select {
	case ev := <-events:
		t.Errorf("unexpected %s after CLOSE", ev.Type)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIntegration_UnreachableBroker(t *testing.T) {
	tr, events := open(t, "tcp://127.0.0.1:1", "nobody")

	ev := expect(t, events, transport.EventError)
	if ev.Err == nil {
		t.Error("ERROR event without a cause")
	}
	if tr.IsReady() {
		t.Error("IsReady() = true for unreachable broker")
	}
}
