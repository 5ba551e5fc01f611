// Package wav writes and reads canonical 44-byte RIFF/WAVE containers around
// raw interleaved PCM payloads.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the size of the canonical PCM header
const HeaderSize = 44

const (
	riffSizeOffset = 4
	dataSizeOffset = 40
	fmtChunkSize   = 16
	formatPCM      = 1
)

// maxPayload keeps the RIFF size field (payload + 36) within 32 bits
const maxPayload = math.MaxUint32 - (HeaderSize - 8)

var (
	// ErrEncode marks any failure to build a container
	ErrEncode = errors.New("encode error")
	// ErrInvalidHeader is returned when bytes do not hold a canonical PCM header
	ErrInvalidHeader = errors.New("invalid wav header")
)

// Format describes the sample layout of a payload
type Format struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// ByteRate is SampleRate * Channels * BitsPerSample / 8
func (f Format) ByteRate() uint32 {
	return f.SampleRate * uint32(f.Channels) * uint32(f.BitsPerSample) / 8
}

// BlockAlign is Channels * BitsPerSample / 8
func (f Format) BlockAlign() uint16 {
	return f.Channels * f.BitsPerSample / 8
}

// Validate rejects formats the encoder cannot describe
func (f Format) Validate() error {
	if f.SampleRate == 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("unsupported channel count: %d", f.Channels)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bits per sample: %d", f.BitsPerSample)
	}
	return nil
}

// Header is the on-disk layout, field for field, little-endian
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // payload + 36
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16
	AudioFormat   uint16  // 1 = PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload length
}

// NewHeader builds the header for a payload of dataSize bytes
func NewHeader(f Format, dataSize uint32) Header {
	return Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     dataSize + HeaderSize - 8,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: fmtChunkSize,
		AudioFormat:   formatPCM,
		NumChannels:   f.Channels,
		SampleRate:    f.SampleRate,
		ByteRate:      f.ByteRate(),
		BlockAlign:    f.BlockAlign(),
		BitsPerSample: f.BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// PCMFormat returns the sample layout recorded in the header
func (h Header) PCMFormat() Format {
	return Format{
		SampleRate:    h.SampleRate,
		Channels:      h.NumChannels,
		BitsPerSample: h.BitsPerSample,
	}
}

// DataSize is the payload length recorded in the header
func (h Header) DataSize() uint32 {
	return h.Subchunk2Size
}

// MarshalBinary encodes the header into exactly HeaderSize bytes
func (h Header) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks the fixed tags and internal consistency
func (h Header) Validate() error {
	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" {
		return fmt.Errorf("%w: missing RIFF/WAVE tags", ErrInvalidHeader)
	}
	if string(h.Subchunk1ID[:]) != "fmt " || h.Subchunk1Size != fmtChunkSize {
		return fmt.Errorf("%w: non-canonical fmt chunk", ErrInvalidHeader)
	}
	if h.AudioFormat != formatPCM {
		return fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidHeader, h.AudioFormat)
	}
	if string(h.Subchunk2ID[:]) != "data" {
		return fmt.Errorf("%w: data chunk does not follow fmt chunk", ErrInvalidHeader)
	}
	f := h.PCMFormat()
	if h.ByteRate != f.ByteRate() || h.BlockAlign != f.BlockAlign() {
		return fmt.Errorf("%w: byte rate or block align inconsistent", ErrInvalidHeader)
	}
	return nil
}

// ReadHeader decodes and validates a canonical header from r
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, fmt.Errorf("%w: need %d bytes", ErrInvalidHeader, HeaderSize)
		}
		return h, err
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}
