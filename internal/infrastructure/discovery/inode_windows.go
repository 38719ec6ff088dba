//go:build windows

package discovery

import "os"

// fileKey has no cheap device+inode equivalent on Windows via os.FileInfo,
// so it always reports false there and discovery performs no symlink-cycle
// or duplicate-file detection on Windows.
func fileKey(info os.FileInfo) (fileID, bool) {
	return fileID{}, false
}
