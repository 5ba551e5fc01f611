package audio

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newDetachedMalgoHandle() *malgoHandle {
	return &malgoHandle{
		frames:   make(chan []byte, malgoQueueDepth),
		released: make(chan struct{}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestMalgoHandle_StopAfterReleaseReportsReleased(t *testing.T) {
	h := newDetachedMalgoHandle()

	assert.NoError(t, h.Stop())
	assert.NoError(t, h.Release())
	assert.NoError(t, h.Release())

	assert.ErrorIs(t, h.Stop(), ErrReleased)
	assert.ErrorIs(t, h.Start(), ErrReleased)
	_, err := h.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrReleased)
}

func TestMalgoHandle_ConcurrentStopAndRelease(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newDetachedMalgoHandle()
		h.started.Store(true)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := h.Stop()
			if err != nil {
				assert.ErrorIs(t, err, ErrReleased)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Release())
		}()
		wg.Wait()

		assert.False(t, h.started.Load())
		assert.ErrorIs(t, h.Stop(), ErrReleased)
	}
}
