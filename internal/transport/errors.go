package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport operations.
//
// Runtime failures are never returned from Send or Close; they arrive as
// EventError carrying one of these (or a broker error) as the cause:
//
//	tr.Subscribe(func(ev transport.Event) {
//	    if ev.Type == transport.EventError && errors.Is(ev.Err, transport.ErrBoardConnection) {
//	        // device or broker connection failed
//	    }
//	})
var (
	// ErrBoardConnection reports a lost broker connection or a device that
	// reported a non-healthy status.
	ErrBoardConnection = errors.New("error: board connection failed")

	// ErrPacketTooLarge reports a frame that cannot fit in a single
	// publication when strict packet sizing is enabled.
	ErrPacketTooLarge = errors.New("transport: frame exceeds maximum packet size")

	// ErrInvalidOptions is returned when a transport is constructed with
	// missing or malformed options.
	ErrInvalidOptions = errors.New("transport: invalid options")

	// ErrUnknownTransport is returned by Open for an unregistered name.
	ErrUnknownTransport = errors.New("transport: unknown transport")
)

// Event causes, numbered as the device firmware documents them.
var (
	errStatusFault  = fmt.Errorf("%w. (1)", ErrBoardConnection)
	errDisconnected = fmt.Errorf("%w. (2)", ErrBoardConnection)
)
