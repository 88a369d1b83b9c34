package pkg

import "errors"

// Driver and peripheral errors.
var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidState indicates the peripheral is in the wrong state for
	// the operation (e.g., started before init).
	ErrInvalidState = errors.New("invalid state")

	// ErrBusy indicates a capture buffer is already queued.
	ErrBusy = errors.New("resource busy")

	// ErrAlreadyRunning indicates capture is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates capture is not running.
	ErrNotRunning = errors.New("not running")

	// ErrOverrun indicates the peripheral needed a buffer that was not
	// supplied in time.
	ErrOverrun = errors.New("buffer overrun")

	// ErrInvalidPin indicates a pin number the hardware cannot route.
	ErrInvalidPin = errors.New("invalid pin")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")
)
