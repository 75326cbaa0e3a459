//go:build !windows

package restarter

// DefaultExpander returns an EnvExpander over the process environment
func DefaultExpander() Expander {
	return EnvExpander{}
}
