package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xaionaro-go/voiceprocessor/pkg/voiceprocessor/types"
)

type DeviceFactory interface {
	Name() string
	NewDevice() (types.Device, error)
}

type deviceFactoryWithPriority struct {
	Priority int
	DeviceFactory
}

var (
	deviceFactoryRegistry       = map[string]deviceFactoryWithPriority{}
	deviceFactoryRegistryLocker sync.Mutex
)

// RegisterDeviceFactory adds a backend. Factories with a negative priority
// are only reachable by name.
func RegisterDeviceFactory(
	priority int,
	deviceFactory DeviceFactory,
) {
	deviceFactoryRegistryLocker.Lock()
	defer deviceFactoryRegistryLocker.Unlock()
	name := deviceFactory.Name()
	if _, ok := deviceFactoryRegistry[name]; ok {
		panic(fmt.Errorf("there is already registered a factory of Device with name '%s'", name))
	}
	deviceFactoryRegistry[name] = deviceFactoryWithPriority{
		Priority:      priority,
		DeviceFactory: deviceFactory,
	}
}

// DeviceFactories returns the factories eligible for automatic selection,
// the highest priority first.
func DeviceFactories() []DeviceFactory {
	deviceFactoryRegistryLocker.Lock()
	var factoriesWithPriorities []deviceFactoryWithPriority
	for _, factory := range deviceFactoryRegistry {
		if factory.Priority < 0 {
			continue
		}
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	deviceFactoryRegistryLocker.Unlock()

	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		if factoriesWithPriorities[i].Priority != factoriesWithPriorities[j].Priority {
			return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
		}
		return factoriesWithPriorities[i].Name() < factoriesWithPriorities[j].Name()
	})

	var factories []DeviceFactory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.DeviceFactory)
	}

	return factories
}

func DeviceFactoryByName(name string) (DeviceFactory, bool) {
	deviceFactoryRegistryLocker.Lock()
	defer deviceFactoryRegistryLocker.Unlock()
	factory, ok := deviceFactoryRegistry[name]
	if !ok {
		return nil, false
	}
	return factory.DeviceFactory, true
}

func DeviceFactoryNames() []string {
	deviceFactoryRegistryLocker.Lock()
	defer deviceFactoryRegistryLocker.Unlock()
	names := make([]string, 0, len(deviceFactoryRegistry))
	for name := range deviceFactoryRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unregisterDeviceFactory(name string) {
	deviceFactoryRegistryLocker.Lock()
	defer deviceFactoryRegistryLocker.Unlock()
	delete(deviceFactoryRegistry, name)
}
