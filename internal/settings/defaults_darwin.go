//go:build darwin

package settings

func defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyStoreBackend:         "dir",
		KeyStoreRoot:            "/usr/local/etc/svcrestarter",
		KeyManagerBackend:       "runit",
		KeyManagerScanDir:       "/usr/local/var/service",
		KeyManagerDefinitionDir: "/usr/local/etc/sv",
		KeyManagerUnitDir:       "",
		KeyLogLevel:             defaultConsoleLevelValue,
	}
}
