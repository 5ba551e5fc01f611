package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineBackend(t *testing.T) {
	tests := []struct {
		in   string
		want BackendType
	}{
		{"", BackendTypeAuto},
		{"auto", BackendTypeAuto},
		{"MALGO", BackendTypeMalgo},
		{"miniaudio", BackendTypeMalgo},
		{"portaudio", BackendTypePortAudio},
		{" pipewire ", BackendTypePipeWire},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, determineBackend(tt.in), tt.in)
	}
}

func TestNewDevice_Unknown(t *testing.T) {
	_, err := NewDevice("alsa-direct", DeviceOptions{})
	assert.Error(t, err)
}

func TestMinBufferFor(t *testing.T) {
	// 40ms of 44.1kHz mono s16: 1764 frames of 2 bytes.
	assert.Equal(t, 3528, minBufferFor(44100, Mono, PCM16, 40))
	assert.Equal(t, 7056, minBufferFor(44100, Stereo, PCM16, 40))
	assert.Equal(t, ErrorBadValue, minBufferFor(0, Mono, PCM16, 40))
	assert.Equal(t, ErrorBadValue, minBufferFor(44100, ChannelLayout(7), PCM16, 40))
	assert.Equal(t, ErrorBadValue, minBufferFor(44100, Mono, BitDepth(3), 40))
}

func TestInt16ToBytes(t *testing.T) {
	dst := make([]byte, 6)
	n := int16ToBytes(dst, []int16{1, -2, 0x1234, 99})
	require.Equal(t, 6, n)
	assert.Equal(t, []byte{0x01, 0x00, 0xfe, 0xff, 0x34, 0x12}, dst)
}

func TestParseConfigValues(t *testing.T) {
	src, err := ParseSource("loopback")
	require.NoError(t, err)
	assert.Equal(t, SourceLoopback, src)
	_, err = ParseSource("line-in")
	assert.Error(t, err)

	layout, err := ParseChannelLayout("stereo")
	require.NoError(t, err)
	assert.Equal(t, 2, layout.Channels())
	_, err = ParseChannelLayout("5.1")
	assert.Error(t, err)

	depth, err := ParseBitDepth(16)
	require.NoError(t, err)
	assert.Equal(t, 16, depth.Bits())
	_, err = ParseBitDepth(24)
	assert.Error(t, err)

	assert.Equal(t, 4, FrameSize(Stereo, PCM16))
}

func TestReadError(t *testing.T) {
	err := &ReadError{Code: ErrorDeadObject}
	assert.Equal(t, "device read failed (code -6)", err.Error())
}
