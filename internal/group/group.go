// Package group builds the navigable view: live panes and stored
// notifications merged into repository groups, rebuilt in full on every
// refresh. Nothing here is persisted; the store is the only source of truth.
package group

import (
	"sort"
	"strings"
	"time"

	"github.com/shuntaka9576/agentoast/internal/agent"
	"github.com/shuntaka9576/agentoast/internal/git"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/tmux"
)

// OrphanKey groups notifications that carry no repository at all.
const OrphanKey = "~orphans"

const orphanName = "other notifications"

// PaneInfo is one enumerated pane with its classification attached.
type PaneInfo struct {
	Pane      tmux.Pane
	AgentType agent.Type
	Agent     agent.Result
	RepoRoot  string
	Branch    string
}

// key is the grouping key: the repository root when the pane is inside one,
// otherwise its working directory.
func (p PaneInfo) key() string {
	if p.RepoRoot != "" {
		return p.RepoRoot
	}
	if p.Pane.Path != "" {
		return p.Pane.Path
	}
	return OrphanKey
}

// RowKind distinguishes live-pane rows from orphaned notifications.
type RowKind int

const (
	RowPane RowKind = iota
	RowOrphan
)

// Row is one selectable line under a group header.
type Row struct {
	Kind RowKind

	// Pane is set for RowPane.
	Pane *PaneInfo

	// Notification is set for RowOrphan, and for RowPane when the store
	// holds a row for that pane.
	Notification *store.Notification
}

func (r Row) notifiedAt() (time.Time, int64) {
	if r.Notification == nil {
		return time.Time{}, 0
	}
	return r.Notification.CreatedAt, r.Notification.ID
}

// Group is one repository's panes and orphans.
type Group struct {
	Key  string
	Name string
	Rows []Row

	// Latest is the newest attached notification's creation time; zero when
	// the group has none.
	Latest   time.Time
	latestID int64
}

// HasNotifications reports whether any row carries a notification.
func (g *Group) HasNotifications() bool {
	return !g.Latest.IsZero()
}

// Build merges panes and notifications into sorted groups. Every
// notification appears exactly once: attached to its live pane when one
// matches, otherwise as an orphan under its recorded group.
func Build(panes []PaneInfo, notifications []store.Notification) []Group {
	byKey := make(map[string]*Group)
	var order []*Group

	groupFor := func(key, name string) *Group {
		if g, ok := byKey[key]; ok {
			return g
		}
		g := &Group{Key: key, Name: name}
		byKey[key] = g
		order = append(order, g)
		return g
	}

	// Rows are addressed by group and index, not by pointer: later orphan
	// appends may reallocate a group's row slice.
	type rowRef struct {
		g   *Group
		idx int
	}
	paneRows := make(map[string]rowRef, len(panes))
	for i := range panes {
		p := &panes[i]
		g := groupFor(p.key(), displayName(p.key()))
		g.Rows = append(g.Rows, Row{Kind: RowPane, Pane: p})
		if p.Pane.ID != "" {
			paneRows[p.Pane.ID] = rowRef{g: g, idx: len(g.Rows) - 1}
		}
	}

	for i := range notifications {
		n := &notifications[i]
		if n.TmuxPane != "" {
			if ref, ok := paneRows[n.TmuxPane]; ok {
				ref.g.Rows[ref.idx].Notification = n
				noteLatest(ref.g, n)
				continue
			}
		}
		key, name := n.Repo, displayName(n.Repo)
		if key == "" {
			key, name = OrphanKey, orphanName
		}
		g := groupFor(key, name)
		g.Rows = append(g.Rows, Row{Kind: RowOrphan, Notification: n})
		noteLatest(g, n)
	}

	for _, g := range order {
		sortRows(g.Rows)
	}
	sortGroups(order)

	out := make([]Group, len(order))
	for i, g := range order {
		out[i] = *g
	}
	return out
}

func noteLatest(g *Group, n *store.Notification) {
	if g == nil {
		return
	}
	if n.CreatedAt.After(g.Latest) || (n.CreatedAt.Equal(g.Latest) && n.ID > g.latestID) {
		g.Latest = n.CreatedAt
		g.latestID = n.ID
	}
}

func displayName(key string) string {
	if key == "" || key == OrphanKey {
		return orphanName
	}
	return git.DisplayName(key)
}

// sortRows puts notified rows first, newest first, then quiet panes in
// stable session/window/pane order.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, idi := rows[i].notifiedAt()
		tj, idj := rows[j].notifiedAt()
		iNotified, jNotified := rows[i].Notification != nil, rows[j].Notification != nil
		if iNotified != jNotified {
			return iNotified
		}
		if iNotified {
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			if idi != idj {
				return idi > idj
			}
		}
		return lessPane(rows[i].Pane, rows[j].Pane)
	})
}

func lessPane(a, b *PaneInfo) bool {
	if a == nil || b == nil {
		return b == nil && a != nil
	}
	if a.Pane.Session != b.Pane.Session {
		return a.Pane.Session < b.Pane.Session
	}
	if a.Pane.WindowIndex != b.Pane.WindowIndex {
		return a.Pane.WindowIndex < b.Pane.WindowIndex
	}
	return a.Pane.PaneIndex < b.Pane.PaneIndex
}

// sortGroups puts groups with notifications first, newest first; the rest
// alphabetically.
func sortGroups(groups []*Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if gi.HasNotifications() != gj.HasNotifications() {
			return gi.HasNotifications()
		}
		if gi.HasNotifications() {
			if !gi.Latest.Equal(gj.Latest) {
				return gi.Latest.After(gj.Latest)
			}
			return gi.latestID > gj.latestID
		}
		ni, nj := strings.ToLower(gi.Name), strings.ToLower(gj.Name)
		if ni != nj {
			return ni < nj
		}
		return gi.Key < gj.Key
	})
}
