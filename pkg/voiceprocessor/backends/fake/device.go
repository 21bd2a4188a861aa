// Package fake provides a capture device that synthesizes a predictable
// sample stream and can be told to fail in various ways.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

var (
	ErrReadFailed = errors.New("simulated read failure")
	ErrStalled    = errors.New("the stalled read was interrupted")
)

type Config struct {
	OpenError           error
	StartStreamingError error

	// OpenHang makes Open block until its context is cancelled.
	OpenHang bool

	ReleaseError error

	// FailReadAfter makes the read following the first FailReadAfter ones
	// fail with ReadError (ErrReadFailed if nil) on every opened handle.
	FailReadAfter int
	ReadError     error

	// StallAfter makes the read following the first StallAfter ones block
	// until the context given to Open is cancelled and then fail with
	// ErrStalled, like a source that went silent.
	StallAfter int

	// ShortReadEvery makes every N-th read return half of the requested samples.
	ShortReadEvery int

	MinBufferSize int

	// Realtime paces reads to the sample rate.
	Realtime bool

	// ReadGate, if set, makes every read wait for a value from the channel.
	ReadGate <-chan struct{}
}

// SampleAt returns the value of the sample at the given absolute position of
// the synthesized stream; it is never zero.
func SampleAt(position uint64) int16 {
	return int16(position%32000) + 1
}

type Device struct {
	Config Config

	locker         sync.Mutex
	lastOpenParams *types.OpenParams

	opens    atomic.Int64
	releases atomic.Int64
	reads    atomic.Int64
	closed   atomic.Bool
}

var _ types.Device = (*Device)(nil)

func NewDevice(cfg Config) *Device {
	return &Device{
		Config: cfg,
	}
}

func (d *Device) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *Device) Ping(context.Context) error {
	if d.closed.Load() {
		return fmt.Errorf("the device is closed")
	}
	return nil
}

func (d *Device) MinBufferSize(
	_ context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
) (int, error) {
	return d.Config.MinBufferSize, nil
}

func (d *Device) Open(
	ctx context.Context,
	params types.OpenParams,
) (types.DeviceHandle, error) {
	logger.Debugf(ctx, "fake.Open(%#+v)", params)
	d.opens.Add(1)

	d.locker.Lock()
	d.lastOpenParams = &params
	d.locker.Unlock()

	if d.Config.OpenHang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.Config.OpenError != nil {
		return nil, d.Config.OpenError
	}
	if params.PCMFormat != types.PCMFormatS16LE {
		return nil, fmt.Errorf("unsupported PCM format: %s", params.PCMFormat)
	}
	if params.Channels != types.ChannelMono {
		return nil, fmt.Errorf("unsupported amount of channels: %d", params.Channels)
	}
	return &handle{
		ctx:    ctx,
		device: d,
		params: params,
	}, nil
}

func (d *Device) Opens() int64 {
	return d.opens.Load()
}

func (d *Device) Releases() int64 {
	return d.releases.Load()
}

// Reads counts every Read call of every handle, including the failed ones.
func (d *Device) Reads() int64 {
	return d.reads.Load()
}

func (d *Device) LastOpenParams() (types.OpenParams, bool) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if d.lastOpenParams == nil {
		return types.OpenParams{}, false
	}
	return *d.lastOpenParams, true
}

type handle struct {
	ctx       context.Context
	device    *Device
	params    types.OpenParams
	streaming bool
	released  bool
	reads     int
	position  uint64
}

var _ types.DeviceHandle = (*handle)(nil)

func (h *handle) StartStreaming() error {
	if h.released {
		return fmt.Errorf("the handle is released")
	}
	if err := h.device.Config.StartStreamingError; err != nil {
		return err
	}
	h.streaming = true
	return nil
}

func (h *handle) Read(buf []int16) (int, error) {
	h.device.reads.Add(1)
	if !h.streaming {
		return 0, fmt.Errorf("not streaming")
	}

	cfg := h.device.Config
	if cfg.ReadGate != nil {
		<-cfg.ReadGate
	}
	if cfg.Realtime {
		time.Sleep(h.params.SampleRate.Duration(len(buf)))
	}

	h.reads++
	if cfg.FailReadAfter > 0 && h.reads > cfg.FailReadAfter {
		if cfg.ReadError != nil {
			return 0, cfg.ReadError
		}
		return 0, ErrReadFailed
	}

	if cfg.StallAfter > 0 && h.reads > cfg.StallAfter {
		<-h.ctx.Done()
		return 0, ErrStalled
	}

	n := len(buf)
	if cfg.ShortReadEvery > 0 && h.reads%cfg.ShortReadEvery == 0 {
		n /= 2
	}
	for idx := 0; idx < n; idx++ {
		buf[idx] = SampleAt(h.position)
		h.position++
	}
	return n, nil
}

func (h *handle) StopStreaming() error {
	h.streaming = false
	return nil
}

func (h *handle) Release() error {
	if h.released {
		return fmt.Errorf("the handle is already released")
	}
	h.released = true
	h.device.releases.Add(1)
	return h.device.Config.ReleaseError
}
