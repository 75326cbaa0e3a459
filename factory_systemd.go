//go:build linux

package restarter

func newSystemdManager(opts ManagerOptions) (ServiceManager, error) {
	return NewSystemdManager(opts.UnitDir), nil
}

func availableManagers() []ManagerType {
	return []ManagerType{ManagerRunit, ManagerDaemontools, ManagerS6, ManagerSystemd}
}
