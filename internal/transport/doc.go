// Package transport carries opaque device frames over a publish/subscribe
// broker.
//
// A Transport hides the broker from the protocol client that owns it: the
// owner sends frames, receives frames, and observes a small event stream.
//
//	OPEN     broker connection established
//	READY    device reported status "OK"
//	MESSAGE  frame received from the device
//	ERROR    connection or device failure (the transport stays usable)
//	CLOSE    session ended, emitted once
//
// # Lifecycle
//
//	CONNECTING --connect--> READY --close signal--> CLOSED
//
// Errors can be reported in any state and never change it by themselves.
//
// # Concurrency
//
// Each transport runs its work on one event loop goroutine (see Scheduler).
// Broker callbacks, Send and Close only queue tasks, which is how sends
// issued back to back end up in a single publication.
//
// # Registry
//
// Implementations register a Factory by name; the MQTT transport registers
// itself as "mqtt":
//
//	tr, err := transport.Open("mqtt", transport.Options{
//	    URL:    "tcp://localhost:1883",
//	    Device: "abc",
//	}, transport.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	tr.Subscribe(func(ev transport.Event) {
//	    if ev.Type == transport.EventMessage {
//	        handleFrame(ev.Payload)
//	    }
//	})
//	tr.Send([]byte{0x01, 0x02})
package transport
