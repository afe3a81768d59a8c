package config

import (
	"path/filepath"
	"runtime"
	"strings"
)

var protectedPaths = []string{
	"/",
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib64",
	"/proc",
	"/sbin",
	"/sys",
	"/usr",
	"/usr/bin",
	"/usr/lib",
	"/usr/sbin",
	"/var",
	"/System",
	"/Library",
	`C:\`,
	`C:\Windows`,
	`C:\Windows\System32`,
	`C:\Program Files`,
}

// foldCase is true on platforms whose default filesystems ignore case.
var foldCase = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// IsProtected reports whether abs is a filesystem root or a well-known
// system directory. Subdirectories of those are not protected.
func IsProtected(abs string) bool {
	clean := filepath.Clean(abs)
	for _, p := range protectedPaths {
		if samePath(clean, filepath.Clean(filepath.FromSlash(p))) {
			return true
		}
	}
	// Volume roots such as D:\ on Windows.
	if vol := filepath.VolumeName(clean); vol != "" && strings.TrimPrefix(clean, vol) == string(filepath.Separator) {
		return true
	}
	return false
}

func samePath(a, b string) bool {
	if foldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}
