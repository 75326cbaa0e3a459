package main

import (
	"os"
	"path/filepath"
	"strings"
)

// defaultServiceName is the executable's base name without extension
func defaultServiceName() string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return executableStem(exe)
}

func executableStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// serviceNameArg returns the optional SERVICENAME argument
func serviceNameArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return defaultServiceName()
}
