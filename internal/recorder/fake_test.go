package recorder

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/audiolibrelab/pcmcapture/internal/audio"
	"github.com/audiolibrelab/pcmcapture/internal/wav"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readResult is one scripted Read outcome
type readResult struct {
	n    int
	fill byte
	err  error
}

func chunk(n int, fill byte) readResult { return readResult{n: n, fill: fill} }

func readErr(code int) readResult { return readResult{err: &audio.ReadError{Code: code}} }

type fakeDevice struct {
	mu      sync.Mutex
	minBuf  int
	openErr error
	state   audio.HandleState
	scripts [][]readResult
	handles []*fakeHandle
}

func newFakeDevice(minBuf int, scripts ...[]readResult) *fakeDevice {
	return &fakeDevice{minBuf: minBuf, state: audio.HandleInitialized, scripts: scripts}
}

func (d *fakeDevice) MinBufferSize(uint32, audio.ChannelLayout, audio.BitDepth) int {
	return d.minBuf
}

func (d *fakeDevice) Open(_ audio.Source, _ uint32, _ audio.ChannelLayout, _ audio.BitDepth, bufferSize int) (audio.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	h := newFakeHandle(d.state, bufferSize)
	if len(d.scripts) > 0 {
		h.script = d.scripts[0]
		d.scripts = d.scripts[1:]
	}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDevice) opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *fakeDevice) handle(i int) *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[i]
}

// fakeHandle plays its script, then blocks on feed until released or
// unblocked. After unblock every read fails with a transient error.
type fakeHandle struct {
	state      audio.HandleState
	bufferSize int

	mu     sync.Mutex
	script []readResult

	feed     chan readResult
	gate     chan struct{}
	gateOnce sync.Once
	released chan struct{}
	relOnce  sync.Once

	starts   atomic.Int32
	stops    atomic.Int32
	releases atomic.Int32
}

func newFakeHandle(state audio.HandleState, bufferSize int) *fakeHandle {
	return &fakeHandle{
		state:      state,
		bufferSize: bufferSize,
		feed:       make(chan readResult),
		gate:       make(chan struct{}),
		released:   make(chan struct{}),
	}
}

func (h *fakeHandle) State() audio.HandleState { return h.state }

func (h *fakeHandle) Start() error {
	h.starts.Add(1)
	return nil
}

func (h *fakeHandle) Read(p []byte) (int, error) {
	select {
	case <-h.released:
		return 0, audio.ErrReleased
	default:
	}

	h.mu.Lock()
	if len(h.script) > 0 {
		r := h.script[0]
		h.script = h.script[1:]
		h.mu.Unlock()
		return r.apply(p)
	}
	h.mu.Unlock()

	select {
	case <-h.released:
		return 0, audio.ErrReleased
	case <-h.gate:
		return 0, &audio.ReadError{Code: audio.ErrorDeadObject}
	case r := <-h.feed:
		return r.apply(p)
	}
}

func (r readResult) apply(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	copy(p[:r.n], bytes.Repeat([]byte{r.fill}, r.n))
	return r.n, nil
}

func (h *fakeHandle) Stop() error {
	select {
	case <-h.released:
		return audio.ErrReleased
	default:
	}
	h.stops.Add(1)
	return nil
}

func (h *fakeHandle) Release() error {
	h.relOnce.Do(func() {
		h.releases.Add(1)
		close(h.released)
	})
	return nil
}

func (h *fakeHandle) unblock() {
	h.gateOnce.Do(func() { close(h.gate) })
}

// recordingObserver captures callbacks in order
type recordingObserver struct {
	mu       sync.Mutex
	events   []string
	lengths  []int
	data     bytes.Buffer
	messages []string

	stopped  chan struct{}
	stopOnce sync.Once
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{stopped: make(chan struct{})}
}

func (o *recordingObserver) OnStart() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "start")
}

func (o *recordingObserver) OnRecord(p []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "record")
	o.lengths = append(o.lengths, len(p))
	o.data.Write(p)
}

func (o *recordingObserver) OnStop() {
	o.mu.Lock()
	o.events = append(o.events, "stop")
	o.mu.Unlock()
	o.stopOnce.Do(func() { close(o.stopped) })
}

func (o *recordingObserver) OnError(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "error")
	o.messages = append(o.messages, message)
}

func (o *recordingObserver) records() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.lengths)
}

func (o *recordingObserver) snapshot() ([]string, []int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...), append([]int(nil), o.lengths...)
}

// countingEncoder delegates to wav.Encode and counts calls
type countingEncoder struct {
	calls atomic.Int32
	mu    sync.Mutex
	errs  []error
}

func (e *countingEncoder) Encode(rawPath, destPath string, f wav.Format, appendMode bool) error {
	e.calls.Add(1)
	err := wav.Encode(rawPath, destPath, f, appendMode)
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
	return err
}

func (e *countingEncoder) lastErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return errors.New("no encode calls")
	}
	return e.errs[len(e.errs)-1]
}

// limitedFile writes through to a real file and fails once limit bytes
// have been written, keeping the part that fit
type limitedFile struct {
	*os.File
	limit   int
	written int
}

var errFileTooLarge = errors.New("file too large")

func (f *limitedFile) Write(p []byte) (int, error) {
	room := f.limit - f.written
	if len(p) <= room {
		n, err := f.File.Write(p)
		f.written += n
		return n, err
	}
	n, err := f.File.Write(p[:room])
	f.written += n
	if err != nil {
		return n, err
	}
	return n, errFileTooLarge
}

func limitedSink(limit int) func(string) (io.WriteCloser, error) {
	return func(path string) (io.WriteCloser, error) {
		file, err := createRawFile(path)
		if err != nil {
			return nil, err
		}
		return &limitedFile{File: file.(*os.File), limit: limit}, nil
	}
}
