package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shuntaka9576/agentoast/internal/git"
	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/platform"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/tmux"
)

const sendTimeout = 10 * time.Second

// sendEnv is what the send path resolves from its own process environment.
// Hook adapters share it so a notification raised from inside a pane always
// points back at that pane.
type sendEnv struct {
	TmuxPane string
	BundleID string
}

func sendEnvFromProcess() sendEnv {
	return sendEnv{
		TmuxPane: tmux.CurrentPaneID(),
		BundleID: platform.CurrentTerminalBundleID(),
	}
}

// resolveRepo finds the group key for a directory: the repository root
// path, or the directory itself outside any repository. The branch lands
// in metadata when one exists.
func resolveRepo(ctx context.Context, dir string, meta map[string]string) string {
	if dir == "" {
		return ""
	}
	root, err := git.RepoRoot(ctx, dir)
	if err != nil {
		return dir
	}
	if branch, err := git.Branch(ctx, root); err == nil && branch != "" {
		if _, exists := meta["branch"]; !exists {
			meta["branch"] = branch
		}
	}
	return root
}

func handleSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	title := fs.String("title", "", "Badge text displayed on the notification")
	body := fs.String("body", "", "Notification body text")
	color := fs.String("color", "gray", "Badge color: green, blue, red, gray")
	icon := fs.String("icon", "agentoast", "Icon preset: agentoast, claude, codex, opencode")
	repo := fs.String("repo", "", "Group key (auto-detected from git if omitted)")
	pane := fs.String("pane", "", "tmux pane ID (default: $TMUX_PANE)")
	bundleID := fs.String("bundle-id", "", "Terminal bundle ID for focus-on-click (default: $__CFBundleIdentifier)")
	forceFocus := fs.Bool("force-focus", false, "Switch terminal focus immediately, skip visible history")
	verbose := fs.Bool("verbose", false, "Log to the agentoast log file")
	meta := metaFlag{}
	fs.Var(meta, "meta", "Metadata KEY=VALUE pair (repeatable)")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast send [options]")
		fmt.Println()
		fmt.Println("Send a notification into the store and toast surface.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig()
	initCLILogging(cfg, *verbose)
	defer logging.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	in := store.Input{
		Badge:            *title,
		Body:             *body,
		BadgeColor:       *color,
		Icon:             *icon,
		Metadata:         meta,
		Repo:             *repo,
		TmuxPane:         *pane,
		TerminalBundleID: *bundleID,
		ForceFocus:       *forceFocus,
	}

	env := sendEnvFromProcess()
	if in.TmuxPane == "" {
		in.TmuxPane = env.TmuxPane
	}
	if in.TerminalBundleID == "" {
		in.TerminalBundleID = env.BundleID
	}
	if in.Repo == "" {
		cwd, err := os.Getwd()
		if err == nil {
			in.Repo = resolveRepo(ctx, cwd, in.Metadata)
		}
	}

	st, err := openStore()
	if err != nil {
		fail("%v", err)
	}
	defer st.Close()

	svc := notify.NewService(st, nil)
	action, n, err := svc.Send(ctx, in)
	if err != nil {
		var serr *store.StorageError
		if errors.As(err, &serr) {
			fail("storing notification: %v", serr)
		}
		fail("sending notification: %v", err)
	}

	switch {
	case n != nil:
		fmt.Printf("Notification %d stored (%s)\n", n.ID, action)
	default:
		fmt.Printf("Notification delivered (%s)\n", action)
	}
}
