package restarter

import (
	"fmt"
	"log/slog"
	"strings"
)

// ManagerType selects a ServiceManager backend
type ManagerType int

const (
	// ManagerUnknown represents an unknown backend
	ManagerUnknown ManagerType = iota
	// ManagerSCM is the Windows Service Control Manager
	ManagerSCM
	// ManagerRunit is a runit supervision tree
	ManagerRunit
	// ManagerDaemontools is a daemontools supervision tree
	ManagerDaemontools
	// ManagerS6 is an s6 supervision tree
	ManagerS6
	// ManagerSystemd is systemd
	ManagerSystemd
)

// ManagerType string constants
const (
	managerUnknownStr     = "unknown"
	managerSCMStr         = "scm"
	managerRunitStr       = "runit"
	managerDaemontoolsStr = "daemontools"
	managerS6Str          = "s6"
	managerSystemdStr     = "systemd"
)

// String returns the string representation of ManagerType
func (t ManagerType) String() string {
	switch t {
	case ManagerSCM:
		return managerSCMStr
	case ManagerRunit:
		return managerRunitStr
	case ManagerDaemontools:
		return managerDaemontoolsStr
	case ManagerS6:
		return managerS6Str
	case ManagerSystemd:
		return managerSystemdStr
	default:
		return managerUnknownStr
	}
}

// ParseManagerType maps a backend name to its ManagerType
func ParseManagerType(s string) (ManagerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case managerSCMStr:
		return ManagerSCM, nil
	case managerRunitStr:
		return ManagerRunit, nil
	case managerDaemontoolsStr:
		return ManagerDaemontools, nil
	case managerS6Str:
		return ManagerS6, nil
	case managerSystemdStr:
		return ManagerSystemd, nil
	default:
		return ManagerUnknown, fmt.Errorf("unknown service manager %q", s)
	}
}

// flavor returns the supervise flavor for supervision-tree backends
func (t ManagerType) flavor() (SuperviseFlavor, bool) {
	switch t {
	case ManagerRunit:
		return FlavorRunit, true
	case ManagerDaemontools:
		return FlavorDaemontools, true
	case ManagerS6:
		return FlavorS6, true
	default:
		return 0, false
	}
}

// ManagerOptions carries backend-specific settings for NewServiceManager
type ManagerOptions struct {
	// ScanDir is the supervision tree's scan directory
	ScanDir string
	// DefinitionDir is where supervise service directories are created
	DefinitionDir string
	// UnitDir is where systemd unit files are created
	UnitDir string
	// Logger receives backend diagnostics
	Logger *slog.Logger
}

// NewServiceManager creates the requested backend. Backends the platform
// cannot host fail with ErrUnsupported.
func NewServiceManager(t ManagerType, opts ManagerOptions) (ServiceManager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch t {
	case ManagerSCM:
		return newSCMManager()
	case ManagerSystemd:
		return newSystemdManager(opts)
	}
	if flavor, ok := t.flavor(); ok {
		if opts.ScanDir == "" {
			return nil, fmt.Errorf("%s: scan directory not specified", t)
		}
		return newSuperviseManager(flavor, opts)
	}
	return nil, fmt.Errorf("unknown service manager type: %v", t)
}

// StoreType selects a ConfigStore backend
type StoreType int

const (
	// StoreUnknown represents an unknown store
	StoreUnknown StoreType = iota
	// StoreRegistry is the Windows registry under HKEY_LOCAL_MACHINE
	StoreRegistry
	// StoreDir is a DirStore
	StoreDir
)

// StoreType string constants
const (
	storeUnknownStr  = "unknown"
	storeRegistryStr = "registry"
	storeDirStr      = "dir"
)

// String returns the string representation of StoreType
func (t StoreType) String() string {
	switch t {
	case StoreRegistry:
		return storeRegistryStr
	case StoreDir:
		return storeDirStr
	default:
		return storeUnknownStr
	}
}

// ParseStoreType maps a store name to its StoreType
func ParseStoreType(s string) (StoreType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case storeRegistryStr:
		return StoreRegistry, nil
	case storeDirStr:
		return StoreDir, nil
	default:
		return StoreUnknown, fmt.Errorf("unknown config store %q", s)
	}
}

// NewConfigStore creates the requested store. root is the DirStore root and
// is ignored by the registry.
func NewConfigStore(t StoreType, root string) (ConfigStore, error) {
	switch t {
	case StoreRegistry:
		return newRegistryStore()
	case StoreDir:
		if root == "" {
			return nil, fmt.Errorf("%s: root directory not specified", t)
		}
		return NewDirStore(root), nil
	default:
		return nil, fmt.Errorf("unknown config store type: %v", t)
	}
}
