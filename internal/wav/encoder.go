package wav

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Encode wraps the raw payload at rawPath in a container at destPath.
//
// With appendMode set and a valid container of the same format already at
// destPath, the payload is appended after the existing one and both size
// fields are recomputed; otherwise destPath is replaced. Every failure
// wraps ErrEncode.
func Encode(rawPath, destPath string, f Format, appendMode bool) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	raw, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("%w: open raw payload: %v", ErrEncode, err)
	}
	defer raw.Close()

	info, err := raw.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat raw payload: %v", ErrEncode, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: raw payload %s is empty", ErrEncode, rawPath)
	}

	if appendMode {
		existing, ok, err := probeContainer(destPath, f)
		if err != nil {
			return err
		}
		if ok {
			return appendPayload(destPath, existing, raw, info.Size())
		}
	}
	return writeFresh(destPath, f, raw, info.Size())
}

// probeContainer reports the payload length of a compatible container at
// path. A missing or unparsable file is not an error; it is replaced.
func probeContainer(path string, f Format) (int64, bool, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: open container: %v", ErrEncode, err)
	}
	defer file.Close()

	h, err := ReadHeader(file)
	if err != nil {
		return 0, false, nil
	}
	if h.PCMFormat() != f {
		return 0, false, fmt.Errorf("%w: cannot append %d Hz/%d ch to %d Hz/%d ch container %s",
			ErrEncode, f.SampleRate, f.Channels, h.SampleRate, h.NumChannels, path)
	}

	info, err := file.Stat()
	if err != nil {
		return 0, false, fmt.Errorf("%w: stat container: %v", ErrEncode, err)
	}
	old := int64(h.DataSize())
	// A header claiming more than the file holds was never patched; trust
	// the bytes that are actually there.
	if onDisk := info.Size() - HeaderSize; onDisk < old {
		old = onDisk
	}
	return old, true, nil
}

func appendPayload(path string, old int64, raw io.Reader, rawSize int64) error {
	if old+rawSize > maxPayload {
		return fmt.Errorf("%w: merged payload of %d bytes exceeds container limit", ErrEncode, old+rawSize)
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: open container for append: %v", ErrEncode, err)
	}

	end := int64(HeaderSize) + old
	if err := file.Truncate(end); err != nil {
		file.Close()
		return fmt.Errorf("%w: truncate container: %v", ErrEncode, err)
	}
	if _, err := file.Seek(end, io.SeekStart); err != nil {
		file.Close()
		return fmt.Errorf("%w: seek container: %v", ErrEncode, err)
	}

	n, err := copyPayload(file, raw)
	if err != nil {
		file.Close()
		return err
	}
	if err := patchSizes(file, uint32(old+n)); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("%w: sync container: %v", ErrEncode, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: close container: %v", ErrEncode, err)
	}
	return nil
}

func writeFresh(path string, f Format, raw io.Reader, rawSize int64) error {
	if rawSize > maxPayload {
		return fmt.Errorf("%w: payload of %d bytes exceeds container limit", ErrEncode, rawSize)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create container: %v", ErrEncode, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	// Size fields are zero until the payload has been copied.
	header, err := NewHeader(f, 0).MarshalBinary()
	if err != nil {
		return fail(fmt.Errorf("%w: marshal header: %v", ErrEncode, err))
	}
	if _, err := tmp.Write(header); err != nil {
		return fail(fmt.Errorf("%w: write header: %v", ErrEncode, err))
	}

	n, err := copyPayload(tmp, raw)
	if err != nil {
		return fail(err)
	}
	if n > maxPayload {
		return fail(fmt.Errorf("%w: payload of %d bytes exceeds container limit", ErrEncode, n))
	}
	if err := patchSizes(tmp, uint32(n)); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("%w: sync container: %v", ErrEncode, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close container: %v", ErrEncode, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: move container into place: %v", ErrEncode, err)
	}
	return nil
}

func copyPayload(w io.Writer, raw io.Reader) (int64, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	n, err := io.Copy(bw, raw)
	if err != nil {
		return n, fmt.Errorf("%w: copy payload: %v", ErrEncode, err)
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("%w: flush payload: %v", ErrEncode, err)
	}
	return n, nil
}

// patchSizes rewrites the RIFF and data size fields of an already written
// header in place
func patchSizes(file io.WriterAt, dataSize uint32) error {
	var field [4]byte

	binary.LittleEndian.PutUint32(field[:], dataSize+HeaderSize-8)
	if _, err := file.WriteAt(field[:], riffSizeOffset); err != nil {
		return fmt.Errorf("%w: patch riff size: %v", ErrEncode, err)
	}

	binary.LittleEndian.PutUint32(field[:], dataSize)
	if _, err := file.WriteAt(field[:], dataSizeOffset); err != nil {
		return fmt.Errorf("%w: patch data size: %v", ErrEncode, err)
	}
	return nil
}
