package deploy

import (
	"os"
	"syscall"
)

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

// hasMultipleLinks reports whether path has more than one hard link,
// meaning it is a deployed hardlink rather than a file written at runtime.
func hasMultipleLinks(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return stat.Nlink > 1
}
