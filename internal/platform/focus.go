package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// bundleIDEnv is set by macOS for every process launched from an app, so a
// hook running under iTerm2 or Terminal.app can record which app to bring
// back to the front later.
const bundleIDEnv = "__CFBundleIdentifier"

// CurrentTerminalBundleID returns the bundle id of the terminal app this
// process runs under, or "" off macOS.
func CurrentTerminalBundleID() string {
	return os.Getenv(bundleIDEnv)
}

// ActivateApp brings the app with the given bundle id to the foreground.
// On non-macOS hosts this is a no-op: tmux client switching is the only
// focus primitive available there.
func ActivateApp(ctx context.Context, bundleID string) error {
	if bundleID == "" || !IsMacOS() {
		return nil
	}
	if err := exec.CommandContext(ctx, "open", "-b", bundleID).Run(); err != nil {
		return fmt.Errorf("activating %s: %w", bundleID, err)
	}
	return nil
}
