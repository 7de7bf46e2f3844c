// Package platform detects the host environment and performs the OS-level
// side effects notifications ask for: activating a terminal app and judging
// filesystem watch reliability.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Kind is the detected host platform.
type Kind string

const (
	MacOS   Kind = "macos"
	Linux   Kind = "linux"
	WSL     Kind = "wsl"
	Unknown Kind = "unknown"
)

var (
	detectOnce sync.Once
	detected   Kind
)

// Detect returns the host platform, cached after the first call.
func Detect() Kind {
	detectOnce.Do(func() {
		detected = detect()
	})
	return detected
}

func detect() Kind {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		if isWSL() {
			return WSL
		}
		return Linux
	default:
		return Unknown
	}
}

func isWSL() bool {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}
	version, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(version)), "microsoft")
}

// IsMacOS reports whether the host is macOS, where terminal-app activation
// by bundle id is available.
func IsMacOS() bool {
	return Detect() == MacOS
}

// WatchWarning returns a human-readable warning when path sits on a
// filesystem where fsnotify events are unreliable, or "" when watching
// should work. Callers fall back to interval polling on a non-empty result.
func WatchWarning(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}

	fsType := fsTypeFor(absPath, string(mounts))
	switch {
	case fsType == "9p":
		return "data directory on a 9p mount: file watching disabled, falling back to polling"
	case fsType == "nfs", fsType == "nfs4":
		return "data directory on NFS: file watching may miss events, falling back to polling"
	case fsType == "cifs", fsType == "smbfs":
		return "data directory on CIFS/SMB: file watching may miss events, falling back to polling"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "data directory on SSHFS: file watching disabled, falling back to polling"
	}
	return ""
}

// fsTypeFor returns the filesystem type of the longest mount point
// containing path. /proc/mounts rows are "device mountpoint fstype options".
func fsTypeFor(path, mounts string) string {
	var matchedMount, matchedType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if strings.HasPrefix(path, mountPoint) && len(mountPoint) > len(matchedMount) {
			matchedMount = mountPoint
			matchedType = fsType
		}
	}
	return matchedType
}
