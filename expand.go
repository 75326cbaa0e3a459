package restarter

import (
	"os"
	"strings"
)

// Expander substitutes environment references in an expandable string
type Expander interface {
	Expand(s string) (string, error)
}

// ExpanderFunc adapts a function to the Expander interface
type ExpanderFunc func(s string) (string, error)

// Expand calls f(s)
func (f ExpanderFunc) Expand(s string) (string, error) {
	return f(s)
}

// EnvExpander expands %NAME% references using Lookup, which defaults to
// os.LookupEnv. Undefined references and a lone trailing % are left as
// written, and %% is not an escape. This mirrors how the store's native
// expansion treats its input.
type EnvExpander struct {
	Lookup func(name string) (string, bool)
}

// Expand implements Expander
func (e EnvExpander) Expand(s string) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var b strings.Builder
	b.Grow(len(s))
	for {
		open := strings.IndexByte(s, '%')
		if open < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		closing := strings.IndexByte(s[open+1:], '%')
		if closing < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		closing += open + 1

		name := s[open+1 : closing]
		if value, ok := lookup(name); ok && name != "" {
			b.WriteString(s[:open])
			b.WriteString(value)
			s = s[closing+1:]
			continue
		}

		// Not a known variable: emit the first % and rescan from the second,
		// which may open a real reference.
		b.WriteString(s[:closing])
		s = s[closing:]
	}
}
