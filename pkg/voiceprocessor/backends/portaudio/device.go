package portaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

type Device struct{}

var _ types.Device = (*Device)(nil)

func NewDevice() (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &Device{}, nil
}

func (*Device) Close() error {
	return portaudio.Terminate()
}

func (*Device) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "device info: %#+v", info)

	if devices, err := portaudio.Devices(); err == nil {
		for idx, device := range devices {
			logger.Tracef(ctx, "devices[%d]: %#+v", idx, device)
		}
	}
	return nil
}

// MinBufferSize is the default low input latency of the default input
// device, converted to samples.
func (*Device) MinBufferSize(
	_ context.Context,
	sampleRate types.SampleRate,
	_ types.Channel,
	_ types.PCMFormat,
) (int, error) {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return 0, fmt.Errorf("unable to get the default input device: %w", err)
	}
	return sampleRate.Samples(info.DefaultLowInputLatency), nil
}

func (*Device) Open(
	ctx context.Context,
	params types.OpenParams,
) (_ types.DeviceHandle, _err error) {
	logger.Debugf(ctx, "Open(%#+v)", params)
	defer func() { logger.Debugf(ctx, "/Open(%#+v): %v", params, _err) }()

	if params.PCMFormat != types.PCMFormatS16LE {
		return nil, fmt.Errorf("received an unexpected format: %v", params.PCMFormat)
	}
	if params.FrameLength <= 0 {
		return nil, fmt.Errorf("invalid frame length: %d", params.FrameLength)
	}

	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("unable to get the default input device: %w", err)
	}

	latency := params.SampleRate.Duration(params.BufferSize)
	buf := make([]int16, params.FrameLength*int(params.Channels))
	logger.Debugf(ctx, "input buffer: %T (size: %d), latency: %v", buf, len(buf), latency)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: int(params.Channels),
			Latency:  max(latency, info.DefaultLowInputLatency, time.Millisecond),
		},
		SampleRate:      float64(params.SampleRate),
		FramesPerBuffer: params.FrameLength,
	}, buf)
	if err != nil {
		return nil, fmt.Errorf("unable to open the stream: %w", err)
	}

	return &StreamHandle{
		PortAudioStream: stream,
		InputBuffer:     buf,
		ctx:             ctx,
	}, nil
}
