package audio

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortList(t *testing.T) {
	output := "Output ports:\n  alsa_input.usb-mic:capture_FL\n\n  Firefox:output_FL\n"
	ports := parsePortList(output)
	assert.Equal(t, []string{"alsa_input.usb-mic:capture_FL", "Firefox:output_FL"}, ports)
}

func TestValidatePort_Success(t *testing.T) {
	err := validatePortInList("system:capture_1", []string{"Chrome:output_FL", "system:capture_1"})
	assert.NoError(t, err)
}

func TestValidatePort_NotFound(t *testing.T) {
	err := validatePortInList("nonexistent:port", []string{"Chrome:output_FL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port not found")
}

func TestValidatePort_DuplicateDetection(t *testing.T) {
	ports := []string{
		"Chrome:output_FL",
		"Chrome:output_FL",
		"Chrome-2:output_FL",
	}
	err := validatePortInList("Chrome:output_FL", ports)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate sources detected")

	// Different instances are not duplicates.
	assert.NoError(t, validatePortInList("Chrome-2:output_FL", ports))
}

func TestPipeWireOpen_MissingBinary(t *testing.T) {
	dev := NewPipeWireDevice(DeviceOptions{})
	dev.binary = "pcmcapture-no-such-binary"

	h, err := dev.Open(SourceMic, 44100, Mono, PCM16, 1764)
	require.NoError(t, err)
	assert.Equal(t, HandleUninitialized, h.State())
	assert.Error(t, h.Start())

	_, err = h.Read(make([]byte, 16))
	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, ErrorInvalidOperation, readErr.Code)
	assert.NoError(t, h.Release())
}

func TestPipeWireOpen_Args(t *testing.T) {
	dev := NewPipeWireDevice(DeviceOptions{})
	dev.binary = "sh"

	h, err := dev.Open(SourceLoopback, 48000, Stereo, PCM16, 3840)
	if err != nil || h.State() != HandleInitialized {
		t.Skip("sh not available")
	}
	ph := h.(*pipeWireHandle)
	assert.Equal(t, []string{
		"--rate", "48000",
		"--channels", "2",
		"--format", "s16",
		"--latency", "960",
		"--target", "@DEFAULT_MONITOR@",
		"-",
	}, ph.args)
}

func TestPipeWireHandle_ReadsChildStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	script := filepath.Join(t.TempDir(), "fake-pw-record")
	body := "#!/bin/sh\nhead -c 8192 /dev/zero\nsleep 5\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	dev := NewPipeWireDevice(DeviceOptions{})
	dev.binary = script

	h, err := dev.Open(SourceMic, 44100, Mono, PCM16, 4096)
	require.NoError(t, err)
	require.Equal(t, HandleInitialized, h.State())
	require.NoError(t, h.Start())

	buf := make([]byte, 4096)
	for i := 0; i < 2; i++ {
		n, err := h.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 4096, n)
	}

	require.NoError(t, h.Release())
	_, err = h.Read(buf)
	assert.True(t, errors.Is(err, ErrReleased))
	assert.True(t, errors.Is(h.Stop(), ErrReleased))
	assert.NoError(t, h.Release())
}
