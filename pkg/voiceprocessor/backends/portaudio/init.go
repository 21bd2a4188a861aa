package portaudio

import (
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/registry"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

const (
	Name     = "portaudio"
	Priority = 60
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
