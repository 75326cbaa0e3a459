package restarter

// Version is the current version of svcrestarter
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Managers lists the service manager backends compiled into this build
	Managers []ManagerType
	// Stores lists the config store backends compiled into this build
	Stores []StoreType
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Managers: availableManagers(),
		Stores:   availableStores(),
	}
}
