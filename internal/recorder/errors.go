package recorder

import (
	"errors"

	"github.com/audiolibrelab/pcmcapture/internal/wav"
)

// Error kinds returned by the controller or reported by background tasks.
// Callers match them with errors.Is.
var (
	// ErrConfiguration marks unsupported capture parameters
	ErrConfiguration = errors.New("configuration error")
	// ErrIllegalState marks an operation the current state forbids
	ErrIllegalState = errors.New("illegal state")
	// ErrDevice marks a driver that failed to open or initialize
	ErrDevice = errors.New("device error")
	// ErrIO marks a raw sink failure during capture
	ErrIO = errors.New("io error")
	// ErrEncode marks a container build failure
	ErrEncode = wav.ErrEncode
)
