package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shuntaka9576/agentoast/internal/platform"
	"github.com/shuntaka9576/agentoast/internal/tmux"
)

// handleFocus runs the same side effect a toast click requests: activate
// the recorded terminal app, then bring the pane to the foreground.
func handleFocus(args []string) {
	fs := flag.NewFlagSet("focus", flag.ExitOnError)
	pane := fs.String("pane", "", "tmux pane ID to focus (e.g. %3)")
	bundleID := fs.String("bundle-id", "", "Terminal app bundle ID to activate first")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast focus --pane %N [--bundle-id ID]")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}
	if *pane == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if *bundleID != "" {
		if err := platform.ActivateApp(ctx, *bundleID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: terminal activation failed: %v\n", err)
		}
	}
	if err := tmux.FocusPane(ctx, *pane); err != nil {
		fail("focusing pane %s: %v", *pane, err)
	}
}
