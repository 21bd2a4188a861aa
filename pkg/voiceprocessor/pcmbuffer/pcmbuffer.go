// Package pcmbuffer adapts push-style capture callbacks to blocking reads of
// fixed amounts of signed 16-bit samples.
package pcmbuffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/iamcalledrob/circular"
)

const bytesPerSample = 2

var ErrClosed = errors.New("the buffer is closed")

type Buffer struct {
	locker       sync.Mutex
	ring         *circular.Buffer
	capacity     int
	buffered     int
	closed       bool
	closeErr     error
	dropped      uint64
	progressedCh chan struct{}
	encodeBuf    []byte
	decodeBuf    []byte
}

// New returns a buffer holding up to capacity samples.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Errorf("invalid capacity: %d", capacity))
	}
	return &Buffer{
		ring:         circular.NewBuffer(capacity*bytesPerSample + bytesPerSample),
		capacity:     capacity,
		progressedCh: make(chan struct{}),
	}
}

// Write appends the samples. A chunk that does not fit is dropped as a whole,
// so readers never observe a gap inside a chunk. Returns the amount of
// accepted samples.
func (b *Buffer) Write(samples []int16) int {
	if len(samples) == 0 {
		return 0
	}
	b.locker.Lock()
	defer b.locker.Unlock()

	size := len(samples) * bytesPerSample
	if cap(b.encodeBuf) < size {
		b.encodeBuf = make([]byte, size)
	}
	buf := b.encodeBuf[:size]
	for idx, sample := range samples {
		binary.LittleEndian.PutUint16(buf[idx*bytesPerSample:], uint16(sample))
	}
	return b.writeLocked(buf)
}

// WriteBytes is Write for samples already encoded as S16LE.
func (b *Buffer) WriteBytes(pcm []byte) int {
	if len(pcm) < bytesPerSample {
		return 0
	}
	b.locker.Lock()
	defer b.locker.Unlock()
	return b.writeLocked(pcm[:len(pcm)-len(pcm)%bytesPerSample])
}

func (b *Buffer) writeLocked(pcm []byte) int {
	samples := len(pcm) / bytesPerSample
	if b.closed || b.buffered+samples > b.capacity {
		b.dropped += uint64(samples)
		return 0
	}

	w, err := b.ring.Write(pcm)
	accepted := w / bytesPerSample
	if err != nil || accepted != samples {
		b.dropped += uint64(samples - accepted)
	}
	if accepted == 0 {
		return 0
	}
	b.buffered += accepted

	var oldCh chan struct{}
	oldCh, b.progressedCh = b.progressedCh, make(chan struct{})
	close(oldCh)
	return accepted
}

// Read blocks until len(out) samples are buffered and copies them into out.
// After Close it returns the close error (ErrClosed by default) once fewer
// than len(out) samples remain.
func (b *Buffer) Read(out []int16) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	if len(out) > b.capacity {
		return 0, fmt.Errorf("requested %d samples, but the buffer holds at most %d", len(out), b.capacity)
	}

	b.locker.Lock()
	defer b.locker.Unlock()
	for b.buffered < len(out) {
		if b.closed {
			return 0, b.closeErr
		}
		ch := b.progressedCh
		b.locker.Unlock()
		<-ch
		b.locker.Lock()
	}

	size := len(out) * bytesPerSample
	if cap(b.decodeBuf) < size {
		b.decodeBuf = make([]byte, size)
	}
	buf := b.decodeBuf[:size]
	for got := 0; got < size; {
		n, err := b.ring.Read(buf[got:])
		got += n
		if n == 0 {
			if err == nil {
				err = io.ErrNoProgress
			}
			return 0, fmt.Errorf("the ring buffer returned less than accounted (%d < %d): %w", got, size, err)
		}
	}
	b.buffered -= len(out)

	for idx := range out {
		out[idx] = int16(binary.LittleEndian.Uint16(buf[idx*bytesPerSample:]))
	}
	return len(out), nil
}

func (b *Buffer) Close() {
	b.CloseWithError(nil)
}

// CloseWithError wakes up blocked readers; further writes are dropped.
func (b *Buffer) CloseWithError(err error) {
	b.locker.Lock()
	defer b.locker.Unlock()
	if b.closed {
		return
	}
	if err == nil {
		err = ErrClosed
	}
	b.closed = true
	b.closeErr = err
	close(b.progressedCh)
}

// Dropped returns how many samples were discarded because the buffer was full.
func (b *Buffer) Dropped() uint64 {
	b.locker.Lock()
	defer b.locker.Unlock()
	return b.dropped
}

func (b *Buffer) Buffered() int {
	b.locker.Lock()
	defer b.locker.Unlock()
	return b.buffered
}
