package fake

import (
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/registry"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

const (
	Name = "fake"

	// Priority is negative, so the fake device is never picked automatically.
	Priority = -1
)

func init() {
	registry.RegisterDeviceFactory(Priority, DeviceFactory{})
}

type DeviceFactory struct{}

func (DeviceFactory) Name() string {
	return Name
}

func (DeviceFactory) NewDevice() (types.Device, error) {
	return NewDevice(Config{Realtime: true}), nil
}
