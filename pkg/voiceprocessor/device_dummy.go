package voiceprocessor

import (
	"context"
	"errors"

	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

var ErrNoCaptureDevice = errors.New("no capture backend is available")

type DeviceDummy struct{}

var _ types.Device = DeviceDummy{}

func (DeviceDummy) Close() error {
	return nil
}

func (DeviceDummy) Ping(context.Context) error {
	return nil
}

func (DeviceDummy) MinBufferSize(
	context.Context,
	types.SampleRate,
	types.Channel,
	types.PCMFormat,
) (int, error) {
	return 0, nil
}

func (DeviceDummy) Open(
	context.Context,
	types.OpenParams,
) (types.DeviceHandle, error) {
	return nil, ErrNoCaptureDevice
}
