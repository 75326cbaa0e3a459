//go:build !windows

package restarter

import "fmt"

func newSCMManager() (ServiceManager, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, ManagerSCM)
}

func newSuperviseManager(flavor SuperviseFlavor, opts ManagerOptions) (ServiceManager, error) {
	return NewSuperviseManager(flavor, opts.ScanDir,
		WithDefinitionDir(opts.DefinitionDir),
		WithSuperviseLogger(opts.Logger),
	), nil
}

func newRegistryStore() (ConfigStore, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, StoreRegistry)
}

func availableStores() []StoreType {
	return []StoreType{StoreDir}
}
