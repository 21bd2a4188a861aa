package miniaudio

import (
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/registry"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

const (
	Name     = "miniaudio"
	Priority = 80
)

func init() {
	registry.RegisterDeviceFactory(Priority, DeviceFactory{})
}

type DeviceFactory struct{}

func (DeviceFactory) Name() string {
	return Name
}

func (DeviceFactory) NewDevice() (types.Device, error) {
	return NewDevice()
}
