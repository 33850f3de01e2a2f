package transport

import (
	"fmt"
	"sort"
	"sync"
)

// Transport is a bidirectional frame transport to one device.
type Transport interface {
	// Send queues a frame for delivery. It never blocks and never fails;
	// delivery problems are reported as EventError.
	Send(payload []byte)

	// Close ends the session. EventClose follows once it is over.
	Close()

	// IsReady reports whether the broker connection is established.
	IsReady() bool

	// Subscribe registers h for all events and returns a function that
	// removes it.
	Subscribe(h Handler) (cancel func())
}

// Factory builds a transport from options.
type Factory func(opts Options, fns ...Option) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a transport available under name.
// It panics if name is registered twice or factory is nil.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("transport: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("transport: Register called twice for " + name)
	}
	registry[name] = factory
}

// Open builds the transport registered under name.
func Open(name string, opts Options, fns ...Option) (Transport, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
	return factory(opts, fns...)
}

// Names returns the registered transport names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
