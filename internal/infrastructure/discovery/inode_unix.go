//go:build unix

package discovery

import (
	"os"
	"syscall"
)

// fileKey returns the (device, inode) pair for a file, used to break
// symlink cycles while walking.
func fileKey(info os.FileInfo) (fileID, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileID{}, false
	}
	return fileID{dev: uint64(stat.Dev), ino: stat.Ino}, true
}
