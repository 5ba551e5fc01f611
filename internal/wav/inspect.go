package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Info summarises a container on disk
type Info struct {
	Path     string
	Header   Header
	FileSize int64
	// Samples is the number of decoded samples across all channels.
	Samples  int64
	Duration time.Duration
	// Peak is the largest absolute sample normalised to [0, 1].
	Peak float64
}

// Inspect validates the canonical header of path and scans its samples
func Inspect(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	h, err := ReadHeader(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	info := &Info{
		Path:     path,
		Header:   h,
		FileSize: stat.Size(),
	}
	if rate := h.ByteRate; rate > 0 {
		info.Duration = time.Duration(int64(h.DataSize()) * int64(time.Second) / int64(rate))
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	full := float64(int64(1) << (h.BitsPerSample - 1))
	err = Frames(file, h.PCMFormat(), func(buf *audio.IntBuffer) error {
		for _, v := range buf.Data {
			if v < 0 {
				v = -v
			}
			if p := float64(v) / full; p > info.Peak {
				info.Peak = p
			}
		}
		info.Samples += int64(len(buf.Data))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: decode samples: %w", path, err)
	}
	return info, nil
}

// Frames decodes the PCM payload of a container in chunks and hands each to
// fn. The buffer is reused between calls.
func Frames(r io.ReadSeeker, f Format, fn func(*audio.IntBuffer) error) error {
	d := gowav.NewDecoder(r)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(f.Channels),
			SampleRate:  int(f.SampleRate),
		},
		Data:           make([]int, 4096*int(f.Channels)),
		SourceBitDepth: int(f.BitsPerSample),
	}

	data := buf.Data
	for {
		buf.Data = data
		n, err := d.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if n > 0 {
			buf.Data = data[:n]
			if ferr := fn(buf); ferr != nil {
				return ferr
			}
		}
		if n == 0 || err != nil {
			return nil
		}
	}
}
