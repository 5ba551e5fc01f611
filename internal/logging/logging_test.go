package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSetup_VerboseLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := Setup(Config{}, &buf)
	require.NoError(t, err)
	defer closer.Close()
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger, _, err = Setup(Config{Verbose: 1}, &buf)
	require.NoError(t, err)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSetup_ConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := Setup(Config{Level: "warn"}, &buf)
	require.NoError(t, err)
	logger.Info("quiet")
	logger.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")

	// -v beats a quieter configured level
	buf.Reset()
	logger, _, err = Setup(Config{Level: "warn", Verbose: 1}, &buf)
	require.NoError(t, err)
	logger.Debug("debugging")
	assert.Contains(t, buf.String(), "debugging")

	_, _, err = Setup(Config{Level: "nonsense"}, &buf)
	assert.Error(t, err)
}

func TestSetup_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pcmcapture.log")
	var buf bytes.Buffer
	logger, closer, err := Setup(Config{File: path, MaxSizeMB: 1, MaxBackups: 2}, &buf)
	require.NoError(t, err)

	logger.Info("Recording started", "file", "t1.pcm")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Recording started")
	assert.Contains(t, string(data), "file=t1.pcm")
	assert.Contains(t, buf.String(), "Recording started")
}
