//go:build windows

package restarter

import "fmt"

func newSCMManager() (ServiceManager, error) {
	return NewSCMManager(), nil
}

func newSuperviseManager(flavor SuperviseFlavor, _ ManagerOptions) (ServiceManager, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, flavor)
}

func newSystemdManager(_ ManagerOptions) (ServiceManager, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, ManagerSystemd)
}

func newRegistryStore() (ConfigStore, error) {
	return NewRegistryStore(), nil
}

func availableManagers() []ManagerType {
	return []ManagerType{ManagerSCM}
}

func availableStores() []StoreType {
	return []StoreType{StoreRegistry, StoreDir}
}
