package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/shuntaka9576/agentoast/internal/store"
)

const (
	listColBadge = 14
	listColRepo  = 20
	listColBody  = 48
)

func handleList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Max number of notifications to show")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	unreadOnly := fs.Bool("unread", false, "Show only unread notifications")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast list [options]")
		fmt.Println()
		fmt.Println("List stored notifications, newest first.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	st, err := openStore()
	if err != nil {
		fail("%v", err)
	}
	defer st.Close()

	rows, err := st.List(*limit)
	if err != nil {
		fail("listing notifications: %v", err)
	}
	if *unreadOnly {
		filtered := rows[:0]
		for _, n := range rows {
			if !n.IsRead {
				filtered = append(filtered, n)
			}
		}
		rows = filtered
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			fail("encoding output: %v", err)
		}
		return
	}

	if len(rows) == 0 {
		fmt.Println("No notifications.")
		return
	}

	table := term.IsTerminal(int(os.Stdout.Fd()))
	if table {
		fmt.Printf("%-5s %-7s %-*s %-*s %-6s %s\n",
			"ID", "AGE", listColBadge, "BADGE", listColRepo, "REPO", "PANE", "BODY")
	}
	now := time.Now()
	for _, n := range rows {
		fmt.Println(listLine(n, now, table))
	}
}

// listLine renders one notification row. Non-terminal output stays
// tab-separated and untruncated so it pipes cleanly.
func listLine(n store.Notification, now time.Time, table bool) string {
	body := strings.Join(strings.Fields(n.Body), " ")
	badge := n.Badge
	if !n.IsRead {
		badge = "* " + badge
	}
	if !table {
		return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s",
			n.ID, n.CreatedAt.Format(time.RFC3339), badge, repoLabel(n.Repo), n.TmuxPane, body)
	}
	return fmt.Sprintf("%-5d %-7s %-*s %-*s %-6s %s",
		n.ID,
		ageLabel(now.Sub(n.CreatedAt)),
		listColBadge, runewidth.Truncate(badge, listColBadge, "…"),
		listColRepo, runewidth.Truncate(repoLabel(n.Repo), listColRepo, "…"),
		n.TmuxPane,
		runewidth.Truncate(body, listColBody, "…"))
}

// repoLabel shortens a repo-root group key to its basename for display.
func repoLabel(repo string) string {
	if repo == "" {
		return "-"
	}
	if strings.Contains(repo, string(filepath.Separator)) {
		return filepath.Base(repo)
	}
	return repo
}

func ageLabel(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
