package audio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// malgoPeriodMs is the capture period requested from miniaudio
const malgoPeriodMs = 40

// malgoQueueDepth bounds how many callback periods may wait for Read
const malgoQueueDepth = 64

// MalgoDevice captures through miniaudio
type MalgoDevice struct {
	opts DeviceOptions
}

// NewMalgoDevice creates a miniaudio-backed device
func NewMalgoDevice(opts DeviceOptions) *MalgoDevice {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &MalgoDevice{opts: opts}
}

// newMalgoDeviceChecked verifies a miniaudio context can be created
func newMalgoDeviceChecked(opts DeviceOptions) (*MalgoDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	_ = ctx.Uninit()
	ctx.Free()
	return NewMalgoDevice(opts), nil
}

// MinBufferSize returns one capture period in bytes
func (d *MalgoDevice) MinBufferSize(sampleRate uint32, layout ChannelLayout, depth BitDepth) int {
	return minBufferFor(sampleRate, layout, depth, malgoPeriodMs)
}

// Open initializes a miniaudio capture (or loopback) device
func (d *MalgoDevice) Open(source Source, sampleRate uint32, layout ChannelLayout, depth BitDepth, bufferSize int) (Handle, error) {
	if depth != PCM16 {
		return nil, fmt.Errorf("malgo: unsupported bit depth %s", depth)
	}

	logger := d.opts.Logger
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	h := &malgoHandle{
		ctx:      ctx,
		frames:   make(chan []byte, malgoQueueDepth),
		released: make(chan struct{}),
		logger:   logger,
	}

	kind := malgo.Capture
	if source == SourceLoopback {
		kind = malgo.Loopback
	}

	deviceConfig := malgo.DefaultDeviceConfig(kind)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(layout.Channels())
	deviceConfig.SampleRate = sampleRate
	if frame := FrameSize(layout, depth); frame > 0 && bufferSize > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(bufferSize / frame)
	}

	if d.opts.Target != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			logger.Warn("Failed to enumerate capture devices", "error", err)
		}
		for _, info := range infos {
			if info.Name() == d.opts.Target {
				deviceConfig.Capture.DeviceID = info.ID.Pointer()
				break
			}
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: h.onData,
	})
	if err != nil {
		// The handle stays usable as an uninitialized stream so the caller
		// can decide how strict to be.
		logger.Error("Failed to initialize capture device", "error", err)
		return h, nil
	}
	h.device = device
	return h, nil
}

type malgoHandle struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	logger *slog.Logger

	frames   chan []byte
	released chan struct{}
	once     sync.Once
	started  atomic.Bool
	dropped  atomic.Int64

	readMu  sync.Mutex
	pending []byte

	// mu serializes device control; Uninit frees the C device
	mu sync.Mutex
}

func (h *malgoHandle) onData(_, input []byte, _ uint32) {
	buf := make([]byte, len(input))
	copy(buf, input)
	select {
	case <-h.released:
	case h.frames <- buf:
	default:
		h.dropped.Add(1)
	}
}

func (h *malgoHandle) State() HandleState {
	if h.device == nil {
		return HandleUninitialized
	}
	return HandleInitialized
}

func (h *malgoHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.released:
		return ErrReleased
	default:
	}
	if h.device == nil {
		return fmt.Errorf("malgo: device not initialized")
	}
	if err := h.device.Start(); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}
	h.started.Store(true)
	return nil
}

// Read blocks until p is full, mirroring a blocking driver read
func (h *malgoHandle) Read(p []byte) (int, error) {
	select {
	case <-h.released:
		return 0, ErrReleased
	default:
	}
	if !h.started.Load() {
		return 0, &ReadError{Code: ErrorInvalidOperation}
	}

	h.readMu.Lock()
	defer h.readMu.Unlock()

	if n := h.dropped.Swap(0); n > 0 {
		h.logger.Warn("Capture queue overrun, periods dropped", "dropped", n)
	}

	n := 0
	for n < len(p) {
		if len(h.pending) == 0 {
			select {
			case chunk := <-h.frames:
				h.pending = chunk
			case <-h.released:
				if n > 0 {
					return n, nil
				}
				return 0, ErrReleased
			}
		}
		c := copy(p[n:], h.pending)
		h.pending = h.pending[c:]
		n += c
	}
	return n, nil
}

func (h *malgoHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.released:
		return ErrReleased
	default:
	}
	h.started.Store(false)
	if h.device == nil {
		return nil
	}
	return h.device.Stop()
}

func (h *malgoHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.once.Do(func() {
		close(h.released)
		h.started.Store(false)
		if h.device != nil {
			h.device.Uninit()
		}
		if h.ctx != nil {
			_ = h.ctx.Uninit()
			h.ctx.Free()
		}
	})
	return nil
}

// listMalgoCaptureDevices returns miniaudio capture device names
func listMalgoCaptureDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}
