//go:build !windows

package restarter

import (
	"os"

	"github.com/google/renameio/v2"
)

// writeFileAtomic replaces filename so readers never observe a partial value
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(filename, data, perm)
}
