//go:build windows

package settings

import (
	"os"
	"path/filepath"
)

func defaults() map[string]interface{} {
	root := os.Getenv("ProgramData")
	if root == "" {
		root = `C:\ProgramData`
	}
	return map[string]interface{}{
		KeyStoreBackend:         "registry",
		KeyStoreRoot:            filepath.Join(root, "svcrestarter"),
		KeyManagerBackend:       "scm",
		KeyManagerScanDir:       "",
		KeyManagerDefinitionDir: "",
		KeyManagerUnitDir:       "",
		KeyLogLevel:             defaultConsoleLevelValue,
	}
}
