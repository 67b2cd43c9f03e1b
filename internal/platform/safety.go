package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDevRun checks if the current process is running via `go run` or `go test`.
// Both build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}

	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveStorePath returns the directory the fs adapter should use.
// With forceTemp, paths outside the system temp dir are re-rooted under
// <tmp>/pinboard-dev/<base name> so dev runs never touch real notes.
func ResolveStorePath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	clean := filepath.Clean(userPath)
	if rel, err := filepath.Rel(os.TempDir(), clean); err == nil && !strings.HasPrefix(rel, "..") && filepath.IsAbs(clean) {
		return clean
	}

	name := "default"
	if userPath != "" && userPath != "." && userPath != "./" {
		if base := filepath.Base(userPath); base != "." && base != string(os.PathSeparator) {
			name = base
		}
	}
	return filepath.Join(os.TempDir(), "pinboard-dev", name)
}
