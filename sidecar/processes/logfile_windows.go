//go:build windows

package processes

import (
	"os"
)

// duplicateFile reopens f for appending. Windows append-mode handles always
// write at end of file, so two handles do not overwrite each other.
func duplicateFile(f *os.File) (*os.File, error) {
	return os.OpenFile(f.Name(), os.O_APPEND|os.O_WRONLY, 0)
}
