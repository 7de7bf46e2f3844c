package update

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChangelogEntry is one version's section from CHANGELOG.md.
type ChangelogEntry struct {
	Version string
	Date    string
	Content string
}

// FetchChangelog downloads CHANGELOG.md from the repository's main branch.
func FetchChangelog() (string, error) {
	url := fmt.Sprintf("https://raw.githubusercontent.com/%s/main/CHANGELOG.md", GitHubRepo)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetching changelog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching changelog: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return "", fmt.Errorf("reading changelog: %w", err)
	}
	return string(data), nil
}

// ParseChangelog splits keep-a-changelog markdown into per-version entries.
// Version headers look like "## [0.3.1] - 2026-08-01".
func ParseChangelog(content string) []ChangelogEntry {
	var entries []ChangelogEntry
	var current *ChangelogEntry
	var body strings.Builder

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## [") {
			if current != nil {
				current.Content = strings.TrimSpace(body.String())
				entries = append(entries, *current)
			}

			rest := strings.TrimPrefix(line, "## [")
			parts := strings.SplitN(rest, "]", 2)
			version := parts[0]
			date := ""
			if len(parts) == 2 && strings.Contains(parts[1], " - ") {
				dateParts := strings.SplitN(parts[1], " - ", 2)
				if len(dateParts) == 2 {
					date = strings.TrimSpace(dateParts[1])
				}
			}
			current = &ChangelogEntry{Version: version, Date: date}
			body.Reset()
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}

	if current != nil {
		current.Content = strings.TrimSpace(body.String())
		entries = append(entries, *current)
	}
	return entries
}

// ChangesBetween returns the entries newer than currentVersion, up to and
// including latestVersion.
func ChangesBetween(entries []ChangelogEntry, currentVersion, latestVersion string) []ChangelogEntry {
	currentVersion = strings.TrimPrefix(currentVersion, "v")
	latestVersion = strings.TrimPrefix(latestVersion, "v")

	var result []ChangelogEntry
	for _, entry := range entries {
		v := strings.TrimPrefix(entry.Version, "v")
		if CompareVersions(v, currentVersion) > 0 && CompareVersions(v, latestVersion) <= 0 {
			result = append(result, entry)
		}
	}
	return result
}

// FormatChangelog renders entries for terminal display.
func FormatChangelog(entries []ChangelogEntry) string {
	if len(entries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n━━━ What's New ━━━\n")

	for _, entry := range entries {
		header := fmt.Sprintf("\n📦 v%s", entry.Version)
		if entry.Date != "" {
			header += fmt.Sprintf(" (%s)", entry.Date)
		}
		sb.WriteString(header)
		sb.WriteString("\n")

		for _, line := range strings.Split(entry.Content, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.HasPrefix(line, "### ") {
				sb.WriteString(fmt.Sprintf("\n  [%s]\n", strings.TrimPrefix(line, "### ")))
			} else {
				sb.WriteString(fmt.Sprintf("  %s\n", line))
			}
		}
	}

	sb.WriteString("\n━━━━━━━━━━━━━━━━━━\n")
	return sb.String()
}
