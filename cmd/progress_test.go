package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/audiolibrelab/pcmcapture/internal/wav"
)

func TestPeak16(t *testing.T) {
	// 100, -300, 32767, odd trailing byte
	chunk := []byte{0x64, 0x00, 0xD4, 0xFE, 0xFF, 0x7F, 0x01}
	assert.Equal(t, 32767, peak16(chunk))
	assert.Equal(t, 300, peak16(chunk[:4]))
	assert.Equal(t, 0, peak16(nil))
}

func TestProgressObserverForwardsFirstError(t *testing.T) {
	var out bytes.Buffer
	p := newProgressObserver(&out, "take", wav.Format{SampleRate: 8000, Channels: 1, BitsPerSample: 16})

	p.OnStart()
	p.OnRecord(make([]byte, 64))
	p.OnError("disk full")
	p.OnError("second")

	assert.Equal(t, "disk full", <-p.failures)
	assert.Empty(t, p.failures)
	assert.Equal(t, int64(64), p.bytes)

	// nothing printed within the first second
	p.finish()
	assert.Empty(t, out.String())
}
