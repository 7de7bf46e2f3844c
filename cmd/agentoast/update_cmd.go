package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shuntaka9576/agentoast/internal/update"
)

func handleUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	checkOnly := fs.Bool("check", false, "Only check for a newer release, do not install")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast update [--check]")
		fmt.Println()
		fmt.Println("Check GitHub releases and replace the running binary.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	if cfg := loadConfig(); cfg.Update.CheckIntervalHours > 0 {
		update.SetCheckInterval(cfg.Update.CheckIntervalHours)
	}

	info, err := update.Check(Version, true)
	if err != nil {
		fail("checking for updates: %v", err)
	}
	if !info.Available {
		fmt.Printf("agentoast v%s is up to date.\n", Version)
		return
	}

	fmt.Printf("Update available: v%s -> v%s\n", info.CurrentVersion, info.LatestVersion)
	if info.ReleaseURL != "" {
		fmt.Printf("Release notes: %s\n", info.ReleaseURL)
	}
	if *checkOnly {
		return
	}

	fmt.Println("Downloading...")
	if err := update.Apply(info.DownloadURL); err != nil {
		fail("applying update: %v", err)
	}
	fmt.Printf("Updated to v%s. Restart agentoast to use the new version.\n", info.LatestVersion)
}
