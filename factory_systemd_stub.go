//go:build !linux && !windows

package restarter

import "fmt"

func newSystemdManager(_ ManagerOptions) (ServiceManager, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, ManagerSystemd)
}

func availableManagers() []ManagerType {
	return []ManagerType{ManagerRunit, ManagerDaemontools, ManagerS6}
}
