package simulator

import "errors"

var (
	// ErrStartFailed indicates the embedded broker could not be started.
	ErrStartFailed = errors.New("simulator: broker start failed")

	// ErrClosed is returned when using a broker after Close.
	ErrClosed = errors.New("simulator: broker closed")

	// ErrInvalidDevice is returned for empty or wildcard device names.
	ErrInvalidDevice = errors.New("simulator: invalid device name")
)
