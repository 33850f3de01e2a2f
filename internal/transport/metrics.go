package transport

// Metrics receives transport telemetry. Implementations must not block;
// calls are made from the transport's event loop.
type Metrics interface {
	// PublicationFlushed records one outbound publication of n bytes.
	PublicationFlushed(device string, n int)

	// FrameReceived records one inbound frame of n bytes.
	FrameReceived(device string, n int)

	// TransportEvent records an emitted event by name (OPEN, READY, ...).
	TransportEvent(device string, event string)
}

type nopMetrics struct{}

func (nopMetrics) PublicationFlushed(string, int) {}
func (nopMetrics) FrameReceived(string, int) {}
func (nopMetrics) TransportEvent(string, string) {}
