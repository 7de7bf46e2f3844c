package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shuntaka9576/agentoast/internal/config"
)

func handleConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	pathOnly := fs.Bool("path", false, "Print the config file path and exit")
	initFile := fs.Bool("init", false, "Write a default config file if none exists")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast config [--path | --init]")
		fmt.Println()
		fmt.Println("Without flags, prints the current config file contents.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	path, err := config.Path()
	if err != nil {
		fail("resolving config path: %v", err)
	}

	if *pathOnly {
		fmt.Println(path)
		return
	}

	if *initFile {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Config already exists: %s\n", path)
			return
		}
		cfg, err := config.Load()
		if err != nil {
			fail("loading defaults: %v", err)
		}
		if err := config.Save(cfg); err != nil {
			fail("writing config: %v", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		fmt.Printf("No config file at %s (defaults in effect).\n", path)
		fmt.Println("Run 'agentoast config --init' to create one.")
		return
	}
	if err != nil {
		fail("reading config: %v", err)
	}
	os.Stdout.Write(data)
}
