package simulator

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/frame-transport/internal/infrastructure/config"
)

// listenerID names the single TCP listener of the embedded broker.
const listenerID = "simulator-tcp"

// Broker is an embedded MQTT broker hosting simulated devices.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Broker struct {
	server *mochi.Server
	addr   string
	logger *slog.Logger

	mu      sync.Mutex
	devices map[string]*Device
	nextSub int
	closed  bool
}

// Start launches the embedded broker on cfg.Host:cfg.Port.
//
// A zero port picks a free local port; use URL to find it.
//
// Parameters:
//   - cfg: Simulator settings from config.yaml
//   - logger: Destination for broker logs (nil discards them)
//
// Returns:
//   - *Broker: Running broker
//   - error: ErrStartFailed wrapping the listener or server failure
func Start(cfg config.SimulatorConfig, logger *slog.Logger) (*Broker, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		free, err := freePort(host)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
		}
		port = free
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       logger,
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("%w: adding auth hook: %w", ErrStartFailed, err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      listenerID,
		Address: addr,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("%w: adding listener: %w", ErrStartFailed, err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			logger.Error("simulator broker stopped", "error", err)
		}
	}()

	logger.Info("simulator broker started", "address", addr)

	return &Broker{
		server:  server,
		addr:    addr,
		logger:  logger,
		devices: make(map[string]*Device),
	}, nil
}

// freePort asks the kernel for an unused TCP port on host.
func freePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// URL returns the broker address in the form accepted by the transport.
func (b *Broker) URL() string {
	return "tcp://" + b.addr
}

// AttachDevice starts simulating a device on the broker.
//
// Attaching the same name twice returns the existing device.
func (b *Broker) AttachDevice(name string) (*Device, error) {
	if name == "" || containsWildcard(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDevice, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if d, ok := b.devices[name]; ok {
		return d, nil
	}

	b.nextSub++
	d := newDevice(b, name, b.nextSub)
	if err := d.start(); err != nil {
		return nil, err
	}
	b.devices[name] = d

	b.logger.Info("simulated device attached", "device", name)
	return d, nil
}

// DisconnectClient drops the network connection of a client, as a broker
// restart or network fault would.
//
// Returns false when no client with that identity is connected.
func (b *Broker) DisconnectClient(clientID string) bool {
	cl, ok := b.server.Clients.Get(clientID)
	if !ok {
		return false
	}
	cl.Stop(errors.New("disconnected by simulator"))
	return true
}

// ClientIDs lists the identities of connected network clients.
func (b *Broker) ClientIDs() []string {
	var ids []string
	for id, cl := range b.server.Clients.GetAll() {
		if cl.Net.Inline || cl.Closed() {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Close stops all devices and the broker.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	devices := b.devices
	b.devices = nil
	b.mu.Unlock()

	for _, d := range devices {
		d.stop()
	}

	if err := b.server.Close(); err != nil {
		return fmt.Errorf("closing simulator broker: %w", err)
	}
	b.logger.Info("simulator broker stopped", "address", b.addr)
	return nil
}

func containsWildcard(s string) bool {
	for _, r := range s {
		if r == '+' || r == '#' {
			return true
		}
	}
	return false
}
