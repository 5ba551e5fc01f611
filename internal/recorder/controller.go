// Package recorder drives a capture device through a session lifecycle and
// turns each finished session into a container file.
package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/pcmcapture/internal/audio"
	"github.com/audiolibrelab/pcmcapture/internal/metrics"
	"github.com/audiolibrelab/pcmcapture/internal/wav"
)

// State represents the controller lifecycle
type State int32

const (
	StateNotReady State = iota
	StateReady
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotReady:
		return "NOT_READY"
	case StateReady:
		return "READY"
	case StateRecording:
		return "RECORDING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds the capture parameters of a session
type Config struct {
	Source     audio.Source
	SampleRate uint32
	Layout     audio.ChannelLayout
	Depth      audio.BitDepth
}

// DefaultConfig is 44100 Hz mono 16-bit from the microphone
func DefaultConfig() Config {
	return Config{
		Source:     audio.SourceMic,
		SampleRate: 44100,
		Layout:     audio.Mono,
		Depth:      audio.PCM16,
	}
}

// Format returns the container format matching the capture parameters
func (c Config) Format() wav.Format {
	return wav.Format{
		SampleRate:    c.SampleRate,
		Channels:      uint16(c.Layout.Channels()),
		BitsPerSample: uint16(c.Depth.Bits()),
	}
}

// SessionInfo contains information about the current session
type SessionInfo struct {
	ID            string    `json:"id"`
	FileName      string    `json:"file_name,omitempty"`
	RawPath       string    `json:"raw_path,omitempty"`
	ContainerPath string    `json:"container_path,omitempty"`
	Config        Config    `json:"config"`
	BufferSize    int       `json:"buffer_size"`
	StartTime     time.Time `json:"start_time"`
}

// Encoder builds a container from a raw payload
type Encoder interface {
	Encode(rawPath, destPath string, f wav.Format, appendMode bool) error
}

// EncoderFunc adapts a function to Encoder
type EncoderFunc func(rawPath, destPath string, f wav.Format, appendMode bool) error

func (fn EncoderFunc) Encode(rawPath, destPath string, f wav.Format, appendMode bool) error {
	return fn(rawPath, destPath, f, appendMode)
}

// session is one configured device handle. fileName, rawPath and startTime
// are set by Start and never change afterwards.
type session struct {
	id         uuid.UUID
	cfg        Config
	handle     audio.Handle
	bufferSize int

	fileName  string
	rawPath   string
	startTime time.Time
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithEncoder replaces the container encoder. Defaults to wav.Encode.
func WithEncoder(e Encoder) Option {
	return func(c *Controller) {
		if e != nil {
			c.encoder = e
		}
	}
}

// WithAppend makes encode jobs merge into an existing container
func WithAppend(appendMode bool) Option {
	return func(c *Controller) { c.appendMode = appendMode }
}

// Controller owns one capture device and serializes its sessions.
//
// All methods are safe for concurrent use. Capture and encode work runs on
// a single background goroutine in submission order.
type Controller struct {
	device     audio.Device
	layout     Layout
	logger     *slog.Logger
	metrics    *metrics.Metrics
	encoder    Encoder
	appendMode bool

	// state is written under mu and polled lock-free by the capture loop
	state    atomic.Int32
	observer observerSlot
	exec     *executor

	mu      sync.Mutex
	session *session
	closed  bool

	readErrorBackoff time.Duration
	openSink         func(path string) (io.WriteCloser, error)
}

// New creates a controller for device storing files under layout
func New(device audio.Device, layout Layout, opts ...Option) *Controller {
	c := &Controller{
		device:           device,
		layout:           layout,
		logger:           slog.Default(),
		encoder:          EncoderFunc(wav.Encode),
		readErrorBackoff: 5 * time.Millisecond,
		openSink:         createRawFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.exec = newExecutor(c.logger)
	c.metrics.SetState(int(StateNotReady))
	return c
}

// State returns the current state
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.SetState(int(s))
}

// SetObserver registers o, replacing any previous observer. Nil clears it.
func (c *Controller) SetObserver(o Observer) {
	c.observer.set(o)
}

// Session returns a copy of the current session, or nil when not configured
func (c *Controller) Session() *SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return nil
	}
	info := &SessionInfo{
		ID:         s.id.String(),
		FileName:   s.fileName,
		RawPath:    s.rawPath,
		Config:     s.cfg,
		BufferSize: s.bufferSize,
		StartTime:  s.startTime,
	}
	if s.fileName != "" {
		info.ContainerPath = c.layout.ContainerPath(s.fileName)
	}
	return info
}

// Configure queries the device for its minimum buffer size and opens a
// capture handle, moving NOT_READY to READY.
//
// A handle that opens but does not report itself initialized is logged and
// the controller still becomes READY; reads will fail on the device side.
func (c *Controller) Configure(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: controller closed", ErrIllegalState)
	}
	if st := c.State(); st != StateNotReady {
		return fmt.Errorf("%w: can only configure from %s state, current: %s", ErrIllegalState, StateNotReady, st)
	}

	size := c.device.MinBufferSize(cfg.SampleRate, cfg.Layout, cfg.Depth)
	if size <= 0 {
		return fmt.Errorf("%w: device is not available for %d Hz %s %s, minimum buffer size: %d",
			ErrConfiguration, cfg.SampleRate, cfg.Layout, cfg.Depth, size)
	}

	handle, err := c.device.Open(cfg.Source, cfg.SampleRate, cfg.Layout, cfg.Depth, size)
	if err != nil {
		if handle != nil {
			_ = handle.Release()
		}
		return fmt.Errorf("%w: failed to open capture handle: %v", ErrDevice, err)
	}
	if handle == nil {
		return fmt.Errorf("%w: device returned no handle", ErrDevice)
	}

	s := &session{
		id:         uuid.New(),
		cfg:        cfg,
		handle:     handle,
		bufferSize: size,
	}
	initialized := handle.State() == audio.HandleInitialized
	if !initialized {
		c.logger.Error("Capture handle not initialized, continuing anyway",
			"session", s.id, "error", ErrDevice)
	}

	c.session = s
	c.setState(StateReady)

	c.logger.Info("Recorder ready",
		"session", s.id,
		"source", cfg.Source,
		"sample_rate", cfg.SampleRate,
		"layout", cfg.Layout,
		"buffer_size", size,
		"initialized", initialized)
	return nil
}

// Start begins capturing into the raw file for fileName, moving READY to
// RECORDING. The capture loop runs on the background goroutine.
func (c *Controller) Start(fileName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: controller closed", ErrIllegalState)
	}
	switch st := c.State(); st {
	case StateReady:
	case StateRecording:
		return fmt.Errorf("%w: already recording", ErrIllegalState)
	default:
		return fmt.Errorf("%w: can only start recording from %s state, current: %s", ErrIllegalState, StateReady, st)
	}

	name := CleanFileName(fileName)
	if name == "" {
		return fmt.Errorf("%w: file name %q is empty after sanitizing", ErrConfiguration, fileName)
	}

	s := c.session
	if err := s.handle.Start(); err != nil {
		c.logger.Error("Failed to start capture handle, continuing anyway",
			"session", s.id, "error", fmt.Errorf("%w: %v", ErrDevice, err))
	}

	s.fileName = name
	s.rawPath = c.layout.RawPath(name)
	s.startTime = time.Now()
	c.setState(StateRecording)
	c.metrics.RecordSessionStarted()

	c.exec.Submit("capture "+name, func() { c.capture(s) })

	c.logger.Info("Recording started", "session", s.id, "file", s.rawPath)
	return nil
}

// Stop asks the capture loop to finish, moving RECORDING to STOPPED. The
// loop notices on its next iteration, so the last read may still complete.
// Stopping an already stopped controller is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch st := c.State(); st {
	case StateRecording:
		c.setState(StateStopped)
		c.logger.Info("Recording stopped", "session", c.session.id)
		return nil
	case StateStopped:
		return nil
	default:
		return fmt.Errorf("%w: not started", ErrIllegalState)
	}
}

// Release frees the device handle and queues a container encode for the
// session's raw file, if one was recorded. It always leaves the controller
// NOT_READY and is safe to call repeatedly.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(true)
}

// Cancel frees the device handle immediately and forgets the raw file
// without encoding it
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(false)
}

// Close releases any held session, waits for queued capture and encode work
// to finish and stops the background goroutine
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.releaseLocked(true)
	c.closed = true
	c.mu.Unlock()

	c.exec.Close()
	return nil
}

func (c *Controller) releaseLocked(encode bool) {
	c.setState(StateNotReady)

	s := c.session
	c.session = nil
	if s == nil {
		return
	}

	if err := s.handle.Release(); err != nil {
		c.logger.Warn("Failed to release capture handle", "session", s.id, "error", err)
	}

	if !encode {
		c.logger.Info("Recording cancelled", "session", s.id)
		return
	}
	if s.fileName != "" {
		c.submitEncode(s)
	}
	c.logger.Debug("Recorder released", "session", s.id)
}

// submitEncode queues the container build for s. The result is only logged.
func (c *Controller) submitEncode(s *session) {
	raw := s.rawPath
	dest := c.layout.ContainerPath(s.fileName)
	format := s.cfg.Format()
	appendMode := c.appendMode
	logger := c.logger.With("session", s.id, "file", dest)

	c.exec.Submit("encode "+s.fileName, func() {
		start := time.Now()
		err := c.encoder.Encode(raw, dest, format, appendMode)
		c.metrics.RecordEncode(err == nil, time.Since(start).Seconds())
		if err != nil {
			logger.Error("Failed to write container", "raw", raw, "error", err)
			return
		}
		logger.Info("Container written", "raw", raw, "append", appendMode)
	})
}
