package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/shuntaka9576/agentoast/internal/profile"
)

const Version = "0.3.1"

// init sets up color profile for consistent terminal colors across environments
func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss color profile based on terminal
// capabilities. Prefers TrueColor, falls back to ANSI256.
func initColorProfile() {
	// AGENTOAST_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("AGENTOAST_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	if colorTerm := os.Getenv("COLORTERM"); colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	term := os.Getenv("TERM")
	trueColorTerms := []string{
		"xterm-256color",
		"screen-256color",
		"tmux-256color",
		"xterm-direct",
		"alacritty",
		"kitty",
		"wezterm",
	}
	for _, t := range trueColorTerms {
		if strings.Contains(term, t) || term == t {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	if os.Getenv("WT_SESSION") != "" || // Windows Terminal
		os.Getenv("ITERM_SESSION_ID") != "" || // iTerm2
		os.Getenv("TERMINAL_EMULATOR") != "" || // JetBrains terminals
		os.Getenv("KONSOLE_VERSION") != "" { // Konsole
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// Works in SSH, basic terminals, and older emulators.
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			name := "agentoast"
			if p := profile.Active(); p != "" {
				name += " [" + p + "]"
			}
			fmt.Printf("%s v%s\n", name, Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "daemon":
			handleDaemon(args[1:])
			return
		case "panel":
			handlePanel(args[1:])
			return
		case "send":
			handleSend(args[1:])
			return
		case "hook":
			handleHook(args[1:])
			return
		case "list", "ls":
			handleList(args[1:])
			return
		case "mute":
			handleMute(args[1:], true)
			return
		case "unmute":
			handleMute(args[1:], false)
			return
		case "status":
			handleStatus(args[1:])
			return
		case "focus":
			handleFocus(args[1:])
			return
		case "delete", "rm":
			handleDelete(args[1:])
			return
		case "config":
			handleConfig(args[1:])
			return
		case "web":
			handleWeb(args[1:])
			return
		case "update":
			handleUpdate(args[1:])
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
			printHelp()
			os.Exit(1)
		}
	}

	// No subcommand opens the panel, the surface people live in.
	handlePanel(nil)
}

func printHelp() {
	fmt.Println(`agentoast - tmux AI agent notifications

Usage: agentoast [command] [options]

Commands:
  panel                Open the notification panel TUI (default)
  daemon               Run the pane-poll and notification daemon
  send                 Send a notification
  hook <agent>         Handle a hook event (claude|codex|opencode)
  list, ls             List stored notifications
  delete, rm           Delete notifications (--id, --pane, --repo, --all)
  mute / unmute        Control delivery muting (--global, --repo NAME)
  focus                Focus the terminal pane of a notification
  status               Show environment and store status
  config               Show or initialize the config file
  web                  Run the dashboard feed server standalone
  update               Check for and apply updates
  version              Show version
  help                 Show this help

Environment:
  AGENTOAST_PROFILE    Use a separate data/config profile
  AGENTOAST_COLOR      Force color profile (truecolor, 256, 16, none)

Run 'agentoast <command> --help' for command options.`)
}
