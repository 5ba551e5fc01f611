package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// pipeWirePeriodMs sizes reads from the pw-record pipe
const pipeWirePeriodMs = 20

// PipeWire manages PipeWire port queries
type PipeWire struct{}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{}
}

// ListPorts returns the output ports (capture sources) known to PipeWire
func (pw *PipeWire) ListPorts() ([]string, error) {
	cmd := exec.Command("pw-link", "-o")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePortList(string(output)), nil
}

// ValidatePort checks that a port exists exactly once
func (pw *PipeWire) ValidatePort(portName string) error {
	if portName == "" {
		return nil
	}
	ports, err := pw.ListPorts()
	if err != nil {
		return err
	}
	return validatePortInList(portName, ports)
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Input ports:") || strings.HasPrefix(line, "Output ports:") {
			continue
		}
		ports = append(ports, line)
	}
	return ports
}

func validatePortInList(portName string, ports []string) error {
	var duplicates []string
	for _, port := range ports {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}
	if len(duplicates) == 0 {
		return fmt.Errorf("port not found: %s", portName)
	}
	if len(duplicates) > 1 {
		return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", portName, duplicates)
	}
	return nil
}

// PipeWireDevice captures raw s16 samples from a pw-record child process
type PipeWireDevice struct {
	opts DeviceOptions
	// binary is overridable for tests
	binary string
}

// NewPipeWireDevice creates a pw-record backed device
func NewPipeWireDevice(opts DeviceOptions) *PipeWireDevice {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PipeWireDevice{opts: opts, binary: "pw-record"}
}

// MinBufferSize returns one pipe read in bytes
func (d *PipeWireDevice) MinBufferSize(sampleRate uint32, layout ChannelLayout, depth BitDepth) int {
	return minBufferFor(sampleRate, layout, depth, pipeWirePeriodMs)
}

// Open prepares the pw-record command. The handle is uninitialized when the
// binary cannot be found.
func (d *PipeWireDevice) Open(source Source, sampleRate uint32, layout ChannelLayout, depth BitDepth, bufferSize int) (Handle, error) {
	if depth != PCM16 {
		return nil, fmt.Errorf("pipewire: unsupported bit depth %s", depth)
	}

	h := &pipeWireHandle{logger: d.opts.Logger}
	path, err := exec.LookPath(d.binary)
	if err != nil {
		d.opts.Logger.Error("pw-record not available", "error", err)
		return h, nil
	}

	args := []string{
		"--rate", fmt.Sprintf("%d", sampleRate),
		"--channels", fmt.Sprintf("%d", layout.Channels()),
		"--format", "s16",
		"--latency", fmt.Sprintf("%d", bufferSize/FrameSize(layout, depth)),
	}
	target := d.opts.Target
	if source == SourceLoopback && target == "" {
		// The default sink's monitor carries what is being played.
		target = "@DEFAULT_MONITOR@"
	}
	if target != "" {
		args = append(args, "--target", target)
	}
	args = append(args, "-")

	h.path = path
	h.args = args
	return h, nil
}

type pipeWireHandle struct {
	logger *slog.Logger
	path   string
	args   []string

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	waited   bool
	released atomic.Bool
}

func (h *pipeWireHandle) State() HandleState {
	if h.path == "" {
		return HandleUninitialized
	}
	return HandleInitialized
}

func (h *pipeWireHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released.Load() {
		return ErrReleased
	}
	if h.path == "" {
		return fmt.Errorf("pipewire: pw-record not initialized")
	}
	if h.cmd != nil {
		return nil
	}

	cmd := exec.Command(h.path, h.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start pw-record: %w", err)
	}
	slog.Debug("Started pw-record", "command", h.path+" "+strings.Join(h.args, " "))

	h.cmd = cmd
	h.stdout = stdout
	h.waited = false
	return nil
}

func (h *pipeWireHandle) Read(p []byte) (int, error) {
	if h.released.Load() {
		return 0, ErrReleased
	}
	h.mu.Lock()
	stdout := h.stdout
	h.mu.Unlock()
	if stdout == nil {
		return 0, &ReadError{Code: ErrorInvalidOperation}
	}

	n, err := io.ReadFull(stdout, p)
	if err == nil || (n > 0 && errors.Is(err, io.ErrUnexpectedEOF)) {
		return n, nil
	}
	if h.released.Load() {
		return 0, ErrReleased
	}
	// The child exited; pace retries so a dead pipe does not spin.
	time.Sleep(10 * time.Millisecond)
	return 0, &ReadError{Code: ErrorDeadObject, Err: err}
}

// Stop interrupts pw-record and waits for it to exit
func (h *pipeWireHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released.Load() {
		return ErrReleased
	}
	return h.stopLocked(os.Interrupt)
}

func (h *pipeWireHandle) stopLocked(sig os.Signal) error {
	if h.cmd == nil || h.waited {
		return nil
	}
	if h.cmd.Process != nil {
		if err := h.cmd.Process.Signal(sig); err != nil {
			_ = h.cmd.Process.Kill()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- h.cmd.Wait()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("pw-record did not exit within timeout, force killing")
		_ = h.cmd.Process.Kill()
		err = <-done
	}
	h.waited = true
	h.cmd = nil
	h.stdout = nil

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Exit on our own signal is the expected way out.
		return nil
	}
	return err
}

func (h *pipeWireHandle) Release() error {
	if h.released.Swap(true) {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopLocked(os.Kill)
}
