// Package profile resolves the active data profile. Profiles keep a
// separate database, config, and log tree per environment so a dev or
// test instance never touches the real notification history.
package profile

import (
	"os"
	"strings"
)

// EnvVar selects the active profile explicitly.
const EnvVar = "AGENTOAST_PROFILE"

// Active returns the current profile name, or "" for the default profile.
// The name becomes part of directory paths, so anything that is not a
// clean path segment is treated as unset.
func Active() string {
	name := strings.ToLower(strings.TrimSpace(os.Getenv(EnvVar)))
	if name == "" || name == "default" {
		return ""
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return ""
		}
	}
	return name
}

// Qualify appends the active profile to a base directory name:
// "agentoast" stays "agentoast" under the default profile and becomes
// "agentoast-work" under AGENTOAST_PROFILE=work.
func Qualify(base string) string {
	p := Active()
	if p == "" {
		return base
	}
	return base + "-" + p
}
