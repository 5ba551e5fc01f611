package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/pcmcapture/internal/audio"
)

// readErrorLogEvery throttles warnings for a device that keeps failing
const readErrorLogEvery = 100

// capture is the body of one capture task. It owns s.handle and the raw sink
// until it returns.
func (c *Controller) capture(s *session) {
	logger := c.logger.With("session", s.id, "file", s.rawPath)

	file, err := c.openSink(s.rawPath)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrIO, err)
		logger.Error("Failed to open raw sink", "error", err)
		c.metrics.RecordSinkError()
		c.observer.get().OnError(err.Error())
		c.observer.get().OnStop()
		return
	}
	sink := bufio.NewWriterSize(file, s.bufferSize)
	buf := make([]byte, s.bufferSize)

	c.observer.get().OnStart()

	var (
		total      int64
		chunks     int
		readErrors int
		failure    error
	)
	for c.State() == StateRecording {
		n, err := s.handle.Read(buf)
		if err != nil {
			if errors.Is(err, audio.ErrReleased) {
				logger.Debug("Capture handle released, leaving loop")
				break
			}
			readErrors++
			c.metrics.RecordReadError()
			if readErrors%readErrorLogEvery == 1 {
				logger.Warn("Device read failed", "error", err, "count", readErrors)
			}
			time.Sleep(c.readErrorBackoff)
			continue
		}
		if n > len(buf) {
			n = len(buf)
		}

		// A failed write may leave part of a chunk, or of earlier buffered
		// chunks, unflushed; the raw file can end up shorter than the
		// bytes reported through OnRecord.
		if _, err := sink.Write(buf[:n]); err != nil {
			failure = fmt.Errorf("%w: write raw sink: %v", ErrIO, err)
			break
		}
		total += int64(n)
		chunks++
		c.metrics.RecordChunk(n)
		c.observer.get().OnRecord(buf[:n])
	}

	if err := s.handle.Stop(); err != nil && !errors.Is(err, audio.ErrReleased) {
		logger.Warn("Failed to stop capture handle", "error", err)
	}
	if err := sink.Flush(); err != nil && failure == nil {
		failure = fmt.Errorf("%w: flush raw sink: %v", ErrIO, err)
	}
	if err := file.Close(); err != nil && failure == nil {
		failure = fmt.Errorf("%w: close raw sink: %v", ErrIO, err)
	}

	if failure != nil {
		logger.Error("Capture ended by sink failure", "error", failure, "bytes", total)
		c.metrics.RecordSinkError()
		c.observer.get().OnError(failure.Error())
	}
	c.observer.get().OnStop()

	logger.Info("Capture finished", "bytes", total, "chunks", chunks, "read_errors", readErrors)
}

// createRawFile replaces any previous raw file at path
func createRawFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove previous raw file: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}
