//go:build unix

package processes

import (
	"os"

	"golang.org/x/sys/unix"
)

// duplicateFile dup(2)s f. The copy shares the file offset and O_APPEND flag.
func duplicateFile(f *os.File) (*os.File, error) {
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	return os.NewFile(uintptr(fd), f.Name()), nil
}
