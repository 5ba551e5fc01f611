package cmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/audiolibrelab/pcmcapture/internal/wav"
)

// progressObserver prints a status line about once a second while recording
// and forwards capture errors to failures
type progressObserver struct {
	out    io.Writer
	name   string
	format wav.Format

	failures chan string

	mu        sync.Mutex
	bytes     int64
	peak      int
	lastPrint time.Time
	printed   bool
}

func newProgressObserver(out io.Writer, name string, f wav.Format) *progressObserver {
	return &progressObserver{
		out:      out,
		name:     name,
		format:   f,
		failures: make(chan string, 1),
	}
}

func (p *progressObserver) OnStart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPrint = time.Now()
}

func (p *progressObserver) OnRecord(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bytes += int64(len(chunk))
	if peak := peak16(chunk); peak > p.peak {
		p.peak = peak
	}
	if time.Since(p.lastPrint) < time.Second {
		return
	}
	p.lastPrint = time.Now()
	p.printLocked()
	p.peak = 0
}

func (p *progressObserver) OnStop() {}

func (p *progressObserver) OnError(message string) {
	select {
	case p.failures <- message:
	default:
	}
}

// finish terminates the status line
func (p *progressObserver) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.out)
	}
}

func (p *progressObserver) printLocked() {
	var elapsed time.Duration
	if rate := p.format.ByteRate(); rate > 0 {
		elapsed = time.Duration(p.bytes * int64(time.Second) / int64(rate))
	}
	fmt.Fprintf(p.out, "\r● %s  %s  %6.1f KiB  peak %3d%%", p.name, elapsed.Truncate(time.Second), float64(p.bytes)/1024, p.peak*100/32768)
	p.printed = true
}

// peak16 returns the largest absolute sample of a 16-bit little-endian chunk
func peak16(chunk []byte) int {
	peak := 0
	for i := 0; i+1 < len(chunk); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(chunk[i:])))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
