package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/ui"
)

func handlePanel(args []string) {
	fs := flag.NewFlagSet("panel", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Mirror warnings to stderr (corrupts the TUI, debugging only)")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast panel")
		fmt.Println()
		fmt.Println("Open the persistent notification panel TUI.")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fail("the panel needs a terminal; use 'agentoast list' for scripted output")
	}

	cfg := loadConfig()
	initServiceLogging(cfg, *verbose)
	defer logging.Shutdown()

	ui.InitTheme(ui.ResolveTheme(cfg.Theme))

	st, err := openStore()
	if err != nil {
		fail("%v", err)
	}
	defer st.Close()

	dbPath, _ := config.DBPath()
	cfgPath, _ := config.Path()

	panel, err := ui.NewPanel(ui.PanelOptions{
		Store:      st,
		Config:     cfg,
		DBPath:     dbPath,
		ConfigPath: cfgPath,
	})
	if err != nil {
		fail("starting panel: %v", err)
	}
	defer panel.Close()

	prog := tea.NewProgram(panel, tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		fail("panel crashed: %v", err)
	}
}
