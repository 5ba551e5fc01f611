package audio

import (
	"errors"
	"fmt"
)

// Source identifies which input the device captures from
type Source int

const (
	SourceMic Source = iota
	SourceLoopback
)

func (s Source) String() string {
	switch s {
	case SourceMic:
		return "mic"
	case SourceLoopback:
		return "loopback"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// ParseSource maps a config value to a Source
func ParseSource(s string) (Source, error) {
	switch s {
	case "", "mic":
		return SourceMic, nil
	case "loopback":
		return SourceLoopback, nil
	}
	return 0, fmt.Errorf("unknown input source: %q", s)
}

// ChannelLayout is the interleaving of captured samples
type ChannelLayout int

const (
	Mono ChannelLayout = iota
	Stereo
)

// Channels returns the number of interleaved channels
func (l ChannelLayout) Channels() int {
	if l == Stereo {
		return 2
	}
	return 1
}

func (l ChannelLayout) String() string {
	switch l {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseChannelLayout maps a config value to a ChannelLayout
func ParseChannelLayout(s string) (ChannelLayout, error) {
	switch s {
	case "", "mono":
		return Mono, nil
	case "stereo":
		return Stereo, nil
	}
	return 0, fmt.Errorf("unknown channel layout: %q", s)
}

// BitDepth is the sample encoding. Only signed 16-bit little-endian PCM
// is supported.
type BitDepth int

const (
	PCM16 BitDepth = iota
)

// Bits returns the number of bits per sample
func (d BitDepth) Bits() int {
	if d == PCM16 {
		return 16
	}
	return 0
}

func (d BitDepth) String() string {
	if d == PCM16 {
		return "pcm16"
	}
	return fmt.Sprintf("depth(%d)", int(d))
}

// ParseBitDepth maps a bit count from config to a BitDepth
func ParseBitDepth(bits int) (BitDepth, error) {
	if bits == 16 || bits == 0 {
		return PCM16, nil
	}
	return 0, fmt.Errorf("unsupported bit depth: %d", bits)
}

// FrameSize is the byte size of one interleaved frame
func FrameSize(layout ChannelLayout, depth BitDepth) int {
	return layout.Channels() * depth.Bits() / 8
}

// HandleState reports whether a handle finished driver initialization
type HandleState int

const (
	HandleUninitialized HandleState = iota
	HandleInitialized
)

// Driver status codes, matching the classic capture API values
const (
	ErrorGeneric          = -1
	ErrorBadValue         = -2
	ErrorInvalidOperation = -3
	ErrorDeadObject       = -6
)

// ErrReleased is returned by a handle that has been released. A capture loop
// receiving it must stop reading.
var ErrReleased = errors.New("audio handle released")

// ReadError is a transient device read failure carrying the driver code
type ReadError struct {
	Code int
	Err  error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device read failed (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("device read failed (code %d)", e.Code)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Device is the minimal capability set a capture controller needs from a
// platform audio driver
type Device interface {
	// MinBufferSize returns the smallest read buffer in bytes the driver
	// accepts for the parameters, or a non-positive code when unsupported.
	MinBufferSize(sampleRate uint32, layout ChannelLayout, depth BitDepth) int

	// Open creates a capture handle. A handle may be returned in the
	// uninitialized state; callers decide whether that is fatal.
	Open(source Source, sampleRate uint32, layout ChannelLayout, depth BitDepth, bufferSize int) (Handle, error)
}

// Handle is one opened capture stream
type Handle interface {
	State() HandleState
	Start() error
	// Read fills p with up to len(p) bytes of interleaved samples.
	// Release from another goroutine unblocks a pending Read with ErrReleased.
	Read(p []byte) (int, error)
	Stop() error
	// Release frees driver resources. Calling it more than once is a no-op.
	Release() error
}
