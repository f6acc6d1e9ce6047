package process

import "errors"

// Sentinel errors for process supervision.
var (
	// ErrAlreadyRunning is returned by Start on a running manager.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrNoBinary is returned by Start when Config.Binary is empty.
	ErrNoBinary = errors.New("process: binary is required")

	// ErrStalled is recorded as the exit cause when the watchdog kills a
	// process that stopped producing output.
	ErrStalled = errors.New("process: no output within stall timeout")
)
