package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/platform"
	"github.com/shuntaka9576/agentoast/internal/profile"
	"github.com/shuntaka9576/agentoast/internal/tmux"
)

// handleMute drives both "mute" and "unmute". With no flags it targets the
// global switch; --repo targets one group. Muting stores rows silently, it
// never deletes them.
func handleMute(args []string, mute bool) {
	name := "mute"
	if !mute {
		name = "unmute"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	global := fs.Bool("global", false, "Target the global mute switch (default when --repo is absent)")
	repo := fs.String("repo", "", "Target one repo/group key")

	fs.Usage = func() {
		fmt.Printf("Usage: agentoast %s [--global | --repo KEY]\n", name)
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}
	if *global && *repo != "" {
		fail("--global and --repo are mutually exclusive")
	}

	st, err := openStore()
	if err != nil {
		fail("%v", err)
	}
	defer st.Close()

	svc := notify.NewService(st, nil)
	if *repo != "" {
		if err := svc.SetRepoMute(*repo, mute); err != nil {
			fail("updating mute state: %v", err)
		}
		fmt.Printf("Group %q %sd\n", *repo, name)
		return
	}
	if err := svc.SetGlobalMute(mute); err != nil {
		fail("updating mute state: %v", err)
	}
	fmt.Printf("Global notifications %sd\n", name)
}

// handleStatus reports the environment, store, and mute state in one place.
func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: agentoast status")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	fmt.Printf("agentoast v%s\n", Version)
	if p := profile.Active(); p != "" {
		fmt.Printf("Profile:   %s\n", p)
	}
	fmt.Printf("Platform:  %s\n", platform.Detect())

	if cfgPath, err := config.Path(); err == nil {
		state := "missing (defaults in effect)"
		if _, err := os.Stat(cfgPath); err == nil {
			state = "present"
		}
		fmt.Printf("Config:    %s (%s)\n", cfgPath, state)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch err := tmux.IsAvailable(); err {
	case nil:
		if panes, err := tmux.ListPanes(ctx); err != nil {
			fmt.Printf("tmux:      installed, server unreachable (%v)\n", err)
		} else {
			fmt.Printf("tmux:      ok, %d pane(s)\n", len(panes))
		}
	default:
		fmt.Printf("tmux:      %v\n", err)
	}

	dbPath, err := config.DBPath()
	if err != nil {
		fail("resolving database path: %v", err)
	}
	if warn := platform.WatchWarning(dbPath); warn != "" {
		fmt.Printf("Watch:     %s\n", warn)
	}

	st, err := openStore()
	if err != nil {
		fmt.Printf("Store:     unavailable (%v)\n", err)
		os.Exit(1)
	}
	defer st.Close()

	rows, err := st.List(0)
	if err != nil {
		fail("reading store: %v", err)
	}
	unread, err := st.UnreadCount()
	if err != nil {
		fail("reading store: %v", err)
	}
	fmt.Printf("Store:     %s\n", dbPath)
	fmt.Printf("Rows:      %d (%d unread)\n", len(rows), unread)

	mute, err := st.LoadMuteState()
	if err != nil {
		fail("reading mute state: %v", err)
	}
	switch {
	case mute.GlobalMuted:
		fmt.Println("Muted:     globally")
	case len(mute.MutedRepos) == 0:
		fmt.Println("Muted:     no")
	default:
		keys := make([]string, 0, len(mute.MutedRepos))
		for k := range mute.MutedRepos {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Muted groups:")
		for _, k := range keys {
			fmt.Printf("  %s\n", k)
		}
	}
}
