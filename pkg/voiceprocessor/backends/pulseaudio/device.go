package pulseaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

// MinBufferDuration is the smallest amount of audio the record stream is
// allowed to buffer.
const MinBufferDuration = 20 * time.Millisecond

type Device struct {
	PulseClient *pulse.Client
}

var _ types.Device = (*Device)(nil)

func NewDevice() (*Device, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	return &Device{
		PulseClient: c,
	}, nil
}

func (d *Device) Close() error {
	d.PulseClient.Close()
	return nil
}

func (d *Device) Ping(ctx context.Context) error {
	source, err := d.PulseClient.DefaultSource()
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "default source: %s (%s)", source.Name(), source.ID())
	return nil
}

func (d *Device) MinBufferSize(
	_ context.Context,
	sampleRate types.SampleRate,
	_ types.Channel,
	_ types.PCMFormat,
) (int, error) {
	return sampleRate.Samples(MinBufferDuration), nil
}

func (d *Device) Open(
	ctx context.Context,
	params types.OpenParams,
) (_ types.DeviceHandle, _err error) {
	logger.Debugf(ctx, "Open(%#+v)", params)
	defer func() { logger.Debugf(ctx, "/Open(%#+v): %v", params, _err) }()

	if params.PCMFormat != types.PCMFormatS16LE {
		return nil, fmt.Errorf("received an unexpected format: %v", params.PCMFormat)
	}
	if params.Channels != types.ChannelMono {
		return nil, fmt.Errorf("do not know how to configure %d channels", params.Channels)
	}

	h := newRecordHandle(ctx, params.BufferSize+params.FrameLength)
	stream, err := d.PulseClient.NewRecord(
		pulse.Int16Writer(h.write),
		pulse.RecordMono,
		pulse.RecordSampleRate(int(params.SampleRate)),
		pulse.RecordLatency(params.SampleRate.Duration(params.BufferSize).Seconds()),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a record stream: %w", err)
	}
	h.RecordStream = stream
	return h, nil
}
