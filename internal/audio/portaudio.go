package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// portAudioPeriodMs is the blocking read size requested from PortAudio
const portAudioPeriodMs = 50

// PortAudioDevice captures with blocking PortAudio input streams
type PortAudioDevice struct {
	opts DeviceOptions
}

// NewPortAudioDevice creates a PortAudio-backed device
func NewPortAudioDevice(opts DeviceOptions) *PortAudioDevice {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PortAudioDevice{opts: opts}
}

// MinBufferSize returns one blocking read in bytes
func (d *PortAudioDevice) MinBufferSize(sampleRate uint32, layout ChannelLayout, depth BitDepth) int {
	return minBufferFor(sampleRate, layout, depth, portAudioPeriodMs)
}

// Open opens a blocking input stream. Loopback capture is not offered by
// PortAudio and yields an uninitialized handle.
func (d *PortAudioDevice) Open(source Source, sampleRate uint32, layout ChannelLayout, depth BitDepth, bufferSize int) (Handle, error) {
	if depth != PCM16 {
		return nil, fmt.Errorf("portaudio: unsupported bit depth %s", depth)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	channels := layout.Channels()
	h := &portAudioHandle{
		buffer: make([]int16, bufferSize/2),
		logger: d.opts.Logger,
	}

	if source == SourceLoopback {
		d.opts.Logger.Error("PortAudio has no loopback capture", "source", source)
		return h, nil
	}

	input, err := d.inputDevice()
	if err != nil {
		d.opts.Logger.Error("No PortAudio input device", "error", err)
		return h, nil
	}

	params := portaudio.LowLatencyParameters(input, nil)
	params.Input.Channels = channels
	params.Output.Channels = 0
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = len(h.buffer) / channels

	stream, err := portaudio.OpenStream(params, h.buffer)
	if err != nil {
		d.opts.Logger.Error("Failed to open PortAudio stream", "device", input.Name, "error", err)
		return h, nil
	}
	h.stream = stream
	return h, nil
}

func (d *PortAudioDevice) inputDevice() (*portaudio.DeviceInfo, error) {
	if d.opts.Target == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == d.opts.Target && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("input device not found: %s", d.opts.Target)
}

type portAudioHandle struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	buffer   []int16
	released atomic.Bool
	started  bool
	logger   *slog.Logger
}

func (h *portAudioHandle) State() HandleState {
	if h.stream == nil {
		return HandleUninitialized
	}
	return HandleInitialized
}

func (h *portAudioHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released.Load() {
		return ErrReleased
	}
	if h.stream == nil {
		return fmt.Errorf("portaudio: stream not initialized")
	}
	if err := h.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	h.started = true
	return nil
}

// Read performs one blocking stream read. Release waits for an in-flight
// read to return, so stop latency is bounded by one period.
func (h *portAudioHandle) Read(p []byte) (int, error) {
	if h.released.Load() {
		return 0, ErrReleased
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released.Load() {
		return 0, ErrReleased
	}
	if h.stream == nil || !h.started {
		return 0, &ReadError{Code: ErrorInvalidOperation}
	}

	err := h.stream.Read()
	if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return 0, &ReadError{Code: ErrorGeneric, Err: err}
	}
	if err != nil {
		h.logger.Debug("PortAudio input overflowed")
	}
	return int16ToBytes(p, h.buffer), nil
}

func (h *portAudioHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released.Load() {
		return ErrReleased
	}
	if h.stream == nil || !h.started {
		return nil
	}
	h.started = false
	return h.stream.Stop()
}

func (h *portAudioHandle) Release() error {
	if h.released.Swap(true) {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.stream != nil {
		if h.started {
			if stopErr := h.stream.Stop(); stopErr != nil {
				h.logger.Debug("Failed to stop PortAudio stream", "error", stopErr)
			}
		}
		err = h.stream.Close()
		h.stream = nil
	}
	if termErr := portaudio.Terminate(); termErr != nil && err == nil {
		err = termErr
	}
	return err
}

// listPortAudioInputs returns PortAudio devices with input channels
func listPortAudioInputs() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}

	var names []string
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			names = append(names, dev.Name)
		}
	}
	return names, nil
}
