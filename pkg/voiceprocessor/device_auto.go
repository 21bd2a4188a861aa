package voiceprocessor

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/registry"
	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

var (
	lastSuccessfulDeviceFactory       registry.DeviceFactory
	lastSuccessfulDeviceFactoryLocker sync.Mutex
)

func getLastSuccessfulDeviceFactory() registry.DeviceFactory {
	lastSuccessfulDeviceFactoryLocker.Lock()
	defer lastSuccessfulDeviceFactoryLocker.Unlock()
	return lastSuccessfulDeviceFactory
}

func setLastSuccessfulDeviceFactory(factory registry.DeviceFactory) {
	lastSuccessfulDeviceFactoryLocker.Lock()
	defer lastSuccessfulDeviceFactoryLocker.Unlock()
	lastSuccessfulDeviceFactory = factory
}

// NewDeviceAuto returns the first registered backend that initializes and
// pings successfully, trying the one that worked last time first. If none
// does, it returns a DeviceDummy, which fails every Open.
func NewDeviceAuto(
	ctx context.Context,
) types.Device {
	if factory := getLastSuccessfulDeviceFactory(); factory != nil {
		device, err := newDevice(ctx, factory)
		if err == nil {
			return device
		}
		logger.Debugf(ctx, "the previously working capture device is not usable anymore: %v", err)
	}

	var mErr *multierror.Error
	for _, factory := range registry.DeviceFactories() {
		device, err := newDevice(ctx, factory)
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		setLastSuccessfulDeviceFactory(factory)
		return device
	}

	logger.Infof(ctx, "was unable to initialize any capture device: %v", mErr.ErrorOrNil())
	return DeviceDummy{}
}

// NewDeviceByName initializes the backend registered under the name.
func NewDeviceByName(
	ctx context.Context,
	name string,
) (types.Device, error) {
	factory, ok := registry.DeviceFactoryByName(name)
	if !ok {
		return nil, fmt.Errorf("there is no capture backend '%s', available: %v", name, registry.DeviceFactoryNames())
	}
	return newDevice(ctx, factory)
}

func newDevice(
	ctx context.Context,
	factory registry.DeviceFactory,
) (types.Device, error) {
	device, err := factory.NewDevice()
	logger.Debugf(ctx, "initializing capture device '%s' result is %v", factory.Name(), err)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize '%s': %w", factory.Name(), err)
	}

	err = device.Ping(ctx)
	logger.Debugf(ctx, "pinging capture device '%s' result is %v", factory.Name(), err)
	if err != nil {
		if closeErr := device.Close(); closeErr != nil {
			logger.Warnf(ctx, "unable to close '%s': %v", factory.Name(), closeErr)
		}
		return nil, fmt.Errorf("unable to ping '%s': %w", factory.Name(), err)
	}
	return device, nil
}
