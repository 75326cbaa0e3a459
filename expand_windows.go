//go:build windows

package restarter

import (
	"golang.org/x/sys/windows/registry"
)

// DefaultExpander returns the expander backed by ExpandEnvironmentStrings
func DefaultExpander() Expander {
	return ExpanderFunc(registry.ExpandString)
}
