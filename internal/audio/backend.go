package audio

import (
	"fmt"
	"log/slog"
	"strings"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeMalgo     BackendType = "malgo"
	BackendTypePortAudio BackendType = "portaudio"
	BackendTypePipeWire  BackendType = "pipewire"
	BackendTypeAuto      BackendType = "auto"
)

// DeviceOptions carries backend-independent driver settings
type DeviceOptions struct {
	// Target names a specific capture endpoint; empty selects the default.
	Target string
	Logger *slog.Logger
}

// NewDevice creates a device for the named backend
func NewDevice(backend string, opts DeviceOptions) (Device, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch determineBackend(backend) {
	case BackendTypeMalgo:
		return NewMalgoDevice(opts), nil
	case BackendTypePortAudio:
		return NewPortAudioDevice(opts), nil
	case BackendTypePipeWire:
		return NewPipeWireDevice(opts), nil
	case BackendTypeAuto:
		// miniaudio covers every desktop platform; portaudio is the fallback
		// when its context cannot be created.
		dev, err := newMalgoDeviceChecked(opts)
		if err == nil {
			return dev, nil
		}
		opts.Logger.Debug("malgo backend unavailable, falling back to portaudio", "error", err)
		return NewPortAudioDevice(opts), nil
	}
	return nil, fmt.Errorf("unknown audio backend: %q", backend)
}

// ListSources returns the capture endpoints known to a backend
func ListSources(backend string) ([]string, error) {
	switch determineBackend(backend) {
	case BackendTypePipeWire:
		return NewPipeWire().ListPorts()
	case BackendTypePortAudio:
		return listPortAudioInputs()
	case BackendTypeMalgo, BackendTypeAuto:
		return listMalgoCaptureDevices()
	}
	return nil, fmt.Errorf("unknown audio backend: %q", backend)
}

// determineBackend normalises a configured backend name
func determineBackend(name string) BackendType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return BackendTypeAuto
	case "malgo", "miniaudio":
		return BackendTypeMalgo
	case "portaudio":
		return BackendTypePortAudio
	case "pipewire":
		return BackendTypePipeWire
	}
	return BackendType(name)
}

// GetAvailableBackends returns the backends compiled into this binary
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeMalgo, BackendTypePortAudio, BackendTypePipeWire}
}

// minBufferFor sizes a read buffer to periodMs of audio, rounded up to a
// whole frame. Unsupported parameters yield ErrorBadValue.
func minBufferFor(sampleRate uint32, layout ChannelLayout, depth BitDepth, periodMs int) int {
	if sampleRate < 4000 || sampleRate > 192000 {
		return ErrorBadValue
	}
	if layout != Mono && layout != Stereo {
		return ErrorBadValue
	}
	frame := FrameSize(layout, depth)
	if frame <= 0 {
		return ErrorBadValue
	}
	frames := (int(sampleRate)*periodMs + 999) / 1000
	return frames * frame
}

// int16ToBytes writes samples as little-endian into dst and returns the count
func int16ToBytes(dst []byte, samples []int16) int {
	n := 0
	for _, s := range samples {
		if n+2 > len(dst) {
			break
		}
		dst[n] = byte(s)
		dst[n+1] = byte(uint16(s) >> 8)
		n += 2
	}
	return n
}
