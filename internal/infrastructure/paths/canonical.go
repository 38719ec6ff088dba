// Package paths canonicalizes source paths into the keys used by
// CoverageMap: platform-neutral forward-slash strings, with case
// preserved in keys and folded (via CaseFold, on case-insensitive
// platforms) only when keys are compared against glob patterns.
package paths

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Canonicalize normalizes p into a forward-slash, cleaned path suitable
// for use as a CoverageMap key. It never touches the filesystem.
func Canonicalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	return p
}

// CaseFold returns p lowercased when running on a case-insensitive
// filesystem (Windows, macOS default HFS+/APFS), so comparisons that
// stand in for the local filesystem's notion of equality — the
// ignore/keep-only glob filters — do not spuriously miss on a casing
// mismatch. On case-sensitive filesystems it returns p unchanged.
func CaseFold(p string) string {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.ToLower(p)
	}
	return p
}

// StripPrefix removes prefix from key if it matches at a path-component
// boundary. Returns key unchanged if prefix does not match a full leading
// sequence of components.
func StripPrefix(key, prefix string) string {
	if prefix == "" {
		return key
	}
	prefix = strings.TrimSuffix(Canonicalize(prefix), "/")
	ck := Canonicalize(key)
	if ck == prefix {
		return ""
	}
	if strings.HasPrefix(ck, prefix+"/") {
		return strings.TrimPrefix(ck, prefix+"/")
	}
	return key
}
