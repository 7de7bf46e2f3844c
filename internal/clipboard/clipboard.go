// Package clipboard copies notification text to the system clipboard,
// trying the platform's native tool first and falling back to the OSC 52
// escape sequence so copying still works over SSH.
package clipboard

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/shuntaka9576/agentoast/internal/platform"
)

// Result reports how a copy landed.
type Result struct {
	// Method is the mechanism that accepted the text: "pbcopy", "wl-copy",
	// "xclip", "xsel", "clip.exe", or "osc52".
	Method string
	Bytes  int
}

// Copy places text on the system clipboard. The native tool for the host
// platform is tried first; when none is available the OSC 52 sequence is
// written to /dev/tty, wrapped in a tmux passthrough when running inside
// tmux.
func Copy(text string) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("nothing to copy")
	}

	if method, err := copyNative(text); err == nil {
		return &Result{Method: method, Bytes: len(text)}, nil
	}

	if err := copyOSC52(text); err != nil {
		return nil, fmt.Errorf("clipboard unavailable: %w", err)
	}
	return &Result{Method: "osc52", Bytes: len(text)}, nil
}

func copyNative(text string) (string, error) {
	switch platform.Detect() {
	case platform.MacOS:
		return "pbcopy", pipe("pbcopy", nil, text)

	case platform.WSL:
		return "clip.exe", pipe("clip.exe", nil, text)

	case platform.Linux:
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if path, err := exec.LookPath("wl-copy"); err == nil {
				return "wl-copy", pipe(path, nil, text)
			}
		}
		if path, err := exec.LookPath("xclip"); err == nil {
			return "xclip", pipe(path, []string{"-selection", "clipboard"}, text)
		}
		if path, err := exec.LookPath("xsel"); err == nil {
			return "xsel", pipe(path, []string{"--clipboard", "--input"}, text)
		}
		return "", fmt.Errorf("no clipboard tool found")

	default:
		return "", fmt.Errorf("unsupported platform")
	}
}

func pipe(name string, args []string, text string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// copyOSC52 writes the OSC 52 set-clipboard sequence straight to the
// controlling terminal, bypassing any stdout redirection.
func copyOSC52(text string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	seq := osc52Sequence(encoded, os.Getenv("TMUX") != "")

	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open /dev/tty: %w", err)
	}
	defer tty.Close()

	_, err = tty.WriteString(seq)
	return err
}

// osc52Sequence builds the escape sequence, adding the tmux DCS passthrough
// wrapper when the process runs inside tmux.
func osc52Sequence(base64Content string, inTmux bool) string {
	osc := "\x1b]52;c;" + base64Content + "\x07"
	if inTmux {
		return "\x1bPtmux;\x1b" + osc + "\x1b\\"
	}
	return osc
}
