// Package miniaudio captures through miniaudio, which picks the native
// capture API of the platform (WASAPI, Core Audio, ALSA, ...).
package miniaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/malgo"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/pcmbuffer"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

const MinBufferDuration = 20 * time.Millisecond

type Device struct {
	MalgoContext *malgo.AllocatedContext
}

var _ types.Device = (*Device)(nil)

func NewDevice() (*Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a miniaudio context: %w", err)
	}
	return &Device{
		MalgoContext: ctx,
	}, nil
}

func (d *Device) Close() error {
	err := d.MalgoContext.Uninit()
	d.MalgoContext.Free()
	return err
}

func (d *Device) Ping(ctx context.Context) error {
	devices, err := d.MalgoContext.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("unable to list capture devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no capture devices found")
	}
	for idx, device := range devices {
		logger.Tracef(ctx, "devices[%d]: %s", idx, device.Name())
	}
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

	buffer := pcmbuffer.New(params.BufferSize + params.FrameLength)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(params.Channels)
	deviceConfig.SampleRate = uint32(params.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(params.FrameLength)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if accepted := buffer.WriteBytes(input); accepted == 0 {
				logger.Tracef(ctx, "the buffer is full, dropped %d bytes", len(input))
			}
		},
	}

	dev, err := malgo.InitDevice(d.MalgoContext.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the capture device: %w", err)
	}
	return &CaptureHandle{
		MalgoDevice: dev,
		Buffer:      buffer,
		ctx:         ctx,
	}, nil
}
