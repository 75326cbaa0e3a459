//go:build !windows && !darwin

package settings

func defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyStoreBackend:         "dir",
		KeyStoreRoot:            "/etc/svcrestarter",
		KeyManagerBackend:       "runit",
		KeyManagerScanDir:       "/etc/service",
		KeyManagerDefinitionDir: "/etc/sv",
		KeyManagerUnitDir:       "/etc/systemd/system",
		KeyLogLevel:             defaultConsoleLevelValue,
	}
}
