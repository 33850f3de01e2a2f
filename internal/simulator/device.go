package simulator

import (
	"fmt"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/nerrad567/frame-transport/internal/infrastructure/mqtt"
)

// echoQueueSize bounds the frames waiting to be echoed.
const echoQueueSize = 256

// Device simulates the remote end of a frame transport.
//
// Every publication on the command topic is recorded and, while echo is
// enabled, published back unchanged on the reply topic.
type Device struct {
	broker *Broker
	topics mqtt.Topics
	subID  int

	echo chan []byte
	done chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	frames   [][]byte
	noEcho   bool
	stopOnce sync.Once
}

func newDevice(b *Broker, name string, subID int) *Device {
	return &Device{
		broker: b,
		topics: mqtt.Topics{Device: name},
		subID:  subID,
		echo:   make(chan []byte, echoQueueSize),
		done:   make(chan struct{}),
	}
}

// start subscribes to the command topic and launches the echo worker.
func (d *Device) start() error {
	if err := d.broker.server.Subscribe(d.topics.Command(), d.subID, d.handleCommand); err != nil {
		return fmt.Errorf("subscribing %s: %w", d.topics.Command(), err)
	}

	d.wg.Add(1)
	go d.echoLoop()
	return nil
}

// handleCommand runs inside the broker; publishing is left to echoLoop.
func (d *Device) handleCommand(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
	frame := append([]byte(nil), pk.Payload...)

	d.mu.Lock()
	d.frames = append(d.frames, frame)
	echo := !d.noEcho
	d.mu.Unlock()

	if !echo {
		return
	}

	select {
	case d.echo <- frame:
	case <-d.done:
	default:
		d.broker.logger.Warn("simulated device echo queue full, frame dropped",
			"device", d.topics.Device,
			"bytes", len(frame),
		)
	}
}

func (d *Device) echoLoop() {
	defer d.wg.Done()
	for {
		select {
		case frame := <-d.echo:
			if err := d.Reply(frame); err != nil {
				d.broker.logger.Warn("simulated device echo failed",
					"device", d.topics.Device,
					"error", err,
				)
			}
		case <-d.done:
			return
		}
	}
}

// Name returns the device identifier.
func (d *Device) Name() string {
	return d.topics.Device
}

// SetEcho enables or disables echoing command frames on the reply topic.
// Echo is enabled by default.
func (d *Device) SetEcho(enabled bool) {
	d.mu.Lock()
	d.noEcho = !enabled
	d.mu.Unlock()
}

// Reply publishes payload on the device reply topic.
func (d *Device) Reply(payload []byte) error {
	return d.broker.server.Publish(d.topics.Reply(), payload, false, 0)
}

// SetStatus publishes a retained value on the device status topic, so
// transports connecting later still observe it.
func (d *Device) SetStatus(status string) error {
	return d.broker.server.Publish(d.topics.Status(), []byte(status), true, 0)
}

// Frames returns a copy of every command publication received so far,
// one entry per publication.
func (d *Device) Frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([][]byte, len(d.frames))
	copy(out, d.frames)
	return out
}

// stop unsubscribes and waits for the echo worker.
func (d *Device) stop() {
	d.stopOnce.Do(func() {
		_ = d.broker.server.Unsubscribe(d.topics.Command(), d.subID)
		close(d.done)
		d.wg.Wait()
	})
}
