package ui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shuntaka9576/agentoast/internal/agent"
	"github.com/shuntaka9576/agentoast/internal/clipboard"
	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/group"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/tmux"
	"github.com/shuntaka9576/agentoast/internal/toast"
)

type focusRecorder struct {
	pane   string
	bundle string
}

func newTestPanel(t *testing.T) (*Panel, *store.Store, *focusRecorder) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "agentoast.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p, err := NewPanel(PanelOptions{Store: st, Config: &config.UserConfig{}})
	if err != nil {
		t.Fatalf("new panel: %v", err)
	}
	t.Cleanup(p.Close)

	rec := &focusRecorder{}
	p.svc = notify.NewService(st, nil,
		notify.WithFocusPane(func(_ context.Context, paneID string) error {
			rec.pane = paneID
			return nil
		}),
		notify.WithFocusApp(func(_ context.Context, bundleID string) error {
			rec.bundle = bundleID
			return nil
		}),
		notify.WithPaneVisible(func(context.Context, string) (bool, error) { return false, nil }),
	)
	p.paneVisible = func(context.Context, string) (bool, error) { return false, nil }
	p.copyText = func(text string) (*clipboard.Result, error) {
		return &clipboard.Result{Method: "test", Bytes: len(text)}, nil
	}
	p.width = 100
	p.height = 30
	return p, st, rec
}

func testPane(id, repo string, window int) group.PaneInfo {
	return group.PaneInfo{
		Pane:      tmux.Pane{ID: id, Session: "dev", WindowIndex: window, WindowName: "main"},
		AgentType: agent.TypeClaude,
		Agent:     agent.Result{Status: agent.StatusRunning},
		RepoRoot:  repo,
		Branch:    "main",
	}
}

func insertRow(t *testing.T, st *store.Store, pane, repo string) *store.Notification {
	t.Helper()
	n, err := st.Insert(store.Input{
		Badge:      "Stop",
		Body:       "agent finished",
		BadgeColor: store.ColorGreen,
		Repo:       repo,
		TmuxPane:   pane,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return n
}

// drainStore runs one store refresh the way bubbletea would: execute the
// command, feed the resulting message back through Update.
func drainStore(t *testing.T, p *Panel) {
	t.Helper()
	msg := p.refreshStore()()
	data, ok := msg.(storeDataMsg)
	if !ok {
		t.Fatalf("refreshStore returned %T", msg)
	}
	if data.err != nil {
		t.Fatalf("refresh failed: %v", data.err)
	}
	p.Update(data)
}

func press(p *Panel, key string) tea.Cmd {
	var msg tea.KeyMsg
	switch key {
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := p.Update(msg)
	return cmd
}

// runAction executes an action command and feeds its result back.
func runAction(t *testing.T, p *Panel, cmd tea.Cmd) actionDoneMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	done, ok := msg.(actionDoneMsg)
	if !ok {
		t.Fatalf("expected actionDoneMsg, got %T", msg)
	}
	if done.err != nil {
		t.Fatalf("action failed: %v", done.err)
	}
	p.Update(done)
	return done
}

func TestNewPanelRequiresStore(t *testing.T) {
	if _, err := NewPanel(PanelOptions{}); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestPanelInit(t *testing.T) {
	p, _, _ := newTestPanel(t)
	if cmd := p.Init(); cmd == nil {
		t.Error("Init should return a command")
	}
}

func TestPanelNavigationKeys(t *testing.T) {
	p, _, _ := newTestPanel(t)
	drainStore(t, p)
	p.Update(panesMsg{panes: []group.PaneInfo{
		testPane("%1", "/home/u/alpha", 1),
		testPane("%2", "/home/u/alpha", 2),
		testPane("%3", "/home/u/beta", 1),
	}})

	// alpha before beta (both quiet, alphabetical), panes in window order
	if len(p.items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(p.items))
	}
	if p.cursor != 0 {
		t.Fatalf("cursor should start at 0, got %d", p.cursor)
	}

	press(p, "j")
	press(p, "j")
	if p.cursor != 2 || p.selected.PaneID != "%2" {
		t.Errorf("after jj cursor=%d selected=%q", p.cursor, p.selected.PaneID)
	}

	press(p, "G")
	if p.cursor != 4 || p.selected.PaneID != "%3" {
		t.Errorf("G should land on last item, cursor=%d", p.cursor)
	}

	press(p, "g")
	if p.cursor != 0 {
		t.Errorf("g should jump to top, cursor=%d", p.cursor)
	}

	press(p, "k")
	if p.cursor != 0 {
		t.Errorf("k at top should stay, cursor=%d", p.cursor)
	}
}

func TestPanelSelectionFollowsPaneAcrossRebuilds(t *testing.T) {
	p, _, _ := newTestPanel(t)
	drainStore(t, p)
	p.Update(panesMsg{panes: []group.PaneInfo{
		testPane("%1", "/home/u/alpha", 1),
		testPane("%2", "/home/u/alpha", 2),
	}})

	press(p, "j")
	press(p, "j")
	if p.selected.PaneID != "%2" {
		t.Fatalf("selected %q, want %%2", p.selected.PaneID)
	}

	// %1 disappears; the cursor should stay on %2 at its new index.
	p.Update(panesMsg{panes: []group.PaneInfo{
		testPane("%2", "/home/u/alpha", 2),
	}})
	if p.cursor != 1 || p.selected.PaneID != "%2" {
		t.Errorf("cursor=%d selected=%q, want 1/%%2", p.cursor, p.selected.PaneID)
	}
}

func TestPanelEnterFocusesPaneAndMarksRead(t *testing.T) {
	p, st, rec := newTestPanel(t)
	n := insertRow(t, st, "%1", "/home/u/alpha")
	drainStore(t, p)
	p.Update(panesMsg{panes: []group.PaneInfo{testPane("%1", "/home/u/alpha", 1)}})

	press(p, "j") // header -> pane row
	done := runAction(t, p, press(p, "enter"))

	if rec.pane != "%1" {
		t.Errorf("focused pane %q, want %%1", rec.pane)
	}
	if !strings.Contains(done.note, "%1") {
		t.Errorf("note %q should name the pane", done.note)
	}
	got, err := st.Get(n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsRead {
		t.Error("notification should be marked read after focus")
	}
}

func TestPanelEnterOnOrphanMarksRead(t *testing.T) {
	p, st, _ := newTestPanel(t)
	n := insertRow(t, st, "%9", "")
	drainStore(t, p)

	press(p, "j") // orphan header -> orphan row
	runAction(t, p, press(p, "enter"))

	got, err := st.Get(n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsRead {
		t.Error("orphan should be marked read")
	}
}

func TestPanelDeleteSelectedRow(t *testing.T) {
	p, st, _ := newTestPanel(t)
	insertRow(t, st, "%9", "")
	drainStore(t, p)

	press(p, "j")
	runAction(t, p, press(p, "d"))

	rows, err := st.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty store, got %d rows", len(rows))
	}
}

func TestPanelDeleteGroupFromHeader(t *testing.T) {
	p, st, _ := newTestPanel(t)
	insertRow(t, st, "%1", "/home/u/alpha")
	insertRow(t, st, "%2", "/home/u/alpha")
	insertRow(t, st, "%3", "/home/u/beta")
	drainStore(t, p)
	p.Update(panesMsg{panes: []group.PaneInfo{
		testPane("%1", "/home/u/alpha", 1),
		testPane("%2", "/home/u/alpha", 2),
	}})

	// Newest notification wins group order; beta holds the newest row but
	// the cursor identity pins the alpha header explicitly.
	idx := group.FindIndex(p.items, group.Identity{Kind: group.ItemHeader, GroupKey: "/home/u/alpha"})
	if idx < 0 {
		t.Fatal("alpha header not found")
	}
	p.setCursor(idx)

	runAction(t, p, press(p, "d"))

	rows, err := st.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Repo != "/home/u/beta" {
		t.Errorf("only beta's row should remain, got %d rows", len(rows))
	}
}

func TestPanelDeleteOrphanGroupFromHeader(t *testing.T) {
	p, st, _ := newTestPanel(t)
	insertRow(t, st, "%8", "")
	insertRow(t, st, "%9", "")
	drainStore(t, p)

	p.setCursor(0) // "other notifications" header
	runAction(t, p, press(p, "d"))

	rows, err := st.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty store, got %d rows", len(rows))
	}
}

func TestPanelMuteKeys(t *testing.T) {
	p, st, _ := newTestPanel(t)
	drainStore(t, p)
	p.Update(panesMsg{panes: []group.PaneInfo{testPane("%1", "/home/u/alpha", 1)}})

	runAction(t, p, press(p, "m"))
	drainStore(t, p)
	if !p.mute.MutedRepos["/home/u/alpha"] {
		t.Error("m should mute the selected repo")
	}

	runAction(t, p, press(p, "m"))
	drainStore(t, p)
	if p.mute.MutedRepos["/home/u/alpha"] {
		t.Error("m again should unmute")
	}

	runAction(t, p, press(p, "M"))
	drainStore(t, p)
	if !p.mute.GlobalMuted {
		t.Error("M should mute globally")
	}

	mute, err := st.LoadMuteState()
	if err != nil {
		t.Fatalf("load mute: %v", err)
	}
	if !mute.GlobalMuted {
		t.Error("global mute should persist")
	}
}

func TestPanelMuteOnOrphanWithNoRepo(t *testing.T) {
	p, st, _ := newTestPanel(t)
	insertRow(t, st, "%9", "")
	drainStore(t, p)

	press(p, "j")
	press(p, "m")
	if p.note == "" {
		t.Error("muting a repo-less row should explain itself in the footer")
	}
}

func TestPanelReadKeys(t *testing.T) {
	p, st, _ := newTestPanel(t)
	insertRow(t, st, "%8", "")
	insertRow(t, st, "%9", "")
	drainStore(t, p)
	if p.unread != 2 {
		t.Fatalf("unread = %d, want 2", p.unread)
	}

	press(p, "j") // first orphan row
	runAction(t, p, press(p, "r"))
	drainStore(t, p)
	if p.unread != 1 {
		t.Errorf("unread = %d after r, want 1", p.unread)
	}

	runAction(t, p, press(p, "R"))
	drainStore(t, p)
	if p.unread != 0 {
		t.Errorf("unread = %d after R, want 0", p.unread)
	}
}

func TestPanelCopyBody(t *testing.T) {
	p, st, _ := newTestPanel(t)
	insertRow(t, st, "%9", "")
	drainStore(t, p)

	press(p, "j")
	done := runAction(t, p, press(p, "y"))
	if !strings.Contains(done.note, "test") {
		t.Errorf("note %q should name the copy method", done.note)
	}
}

func TestPanelToastFromFreshRow(t *testing.T) {
	p, st, _ := newTestPanel(t)
	n := insertRow(t, st, "%5", "/home/u/alpha")
	drainStore(t, p)

	snap := p.queue.Snapshot()
	if snap.State != toast.StateShowing {
		t.Fatalf("queue state = %v, want showing", snap.State)
	}
	if snap.Current == nil || snap.Current.ID != n.ID {
		t.Error("toast should show the fresh row")
	}

	p.Update(toastChangedMsg{})
	if p.toastSnap.Current == nil || p.toastSnap.Current.ID != n.ID {
		t.Error("panel snapshot should track the queue")
	}

	view := p.View()
	if !strings.Contains(view, "o open · x dismiss") {
		t.Error("view should include the toast banner")
	}
}

func TestPanelToastSkipsVisiblePane(t *testing.T) {
	p, st, _ := newTestPanel(t)
	p.paneVisible = func(context.Context, string) (bool, error) { return true, nil }
	insertRow(t, st, "%5", "/home/u/alpha")
	drainStore(t, p)

	if p.queue.Snapshot().State != toast.StateEmpty {
		t.Error("visible pane should not toast")
	}
}

func TestPanelToastSkipsMutedRepo(t *testing.T) {
	p, st, _ := newTestPanel(t)
	if err := st.SetRepoMute("/home/u/alpha", true); err != nil {
		t.Fatalf("mute: %v", err)
	}
	insertRow(t, st, "%5", "/home/u/alpha")
	drainStore(t, p)

	if p.queue.Snapshot().State != toast.StateEmpty {
		t.Error("muted repo should not toast")
	}
}

func TestPanelToastDismissAndClick(t *testing.T) {
	p, st, rec := newTestPanel(t)
	insertRow(t, st, "%5", "/home/u/alpha")
	drainStore(t, p)
	p.Update(toastChangedMsg{})

	press(p, "x")
	if p.queue.Snapshot().State != toast.StateFadingOut {
		t.Error("x should advance past the only toast")
	}

	n2 := insertRow(t, st, "%6", "/home/u/alpha")
	drainStore(t, p)
	p.Update(toastChangedMsg{})

	runAction(t, p, press(p, "o"))
	if rec.pane != "%6" {
		t.Errorf("click focused %q, want %%6", rec.pane)
	}

	rows, err := st.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, row := range rows {
		if row.ID == n2.ID {
			t.Error("clicked toast's row should be deleted")
		}
	}
}

func TestPanelFilterFlow(t *testing.T) {
	p, _, _ := newTestPanel(t)
	drainStore(t, p)
	p.Update(panesMsg{panes: []group.PaneInfo{
		testPane("%1", "/home/u/alpha", 1),
		testPane("%3", "/home/u/beta", 1),
	}})
	if len(p.items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(p.items))
	}

	press(p, "/")
	if !p.filter.Active() {
		t.Fatal("/ should open the filter")
	}
	for _, r := range "beta" {
		press(p, string(r))
	}
	if len(p.items) != 2 {
		t.Fatalf("filter should narrow to beta's header and pane, got %d items", len(p.items))
	}
	if p.items[0].GroupKey != "/home/u/beta" {
		t.Errorf("kept group %q, want beta", p.items[0].GroupKey)
	}

	press(p, "enter")
	if p.filter.Active() {
		t.Error("enter should return key handling to the list")
	}
	if len(p.items) != 2 {
		t.Error("accepted filter should keep narrowing")
	}

	press(p, "esc")
	if p.filter.Query() != "" {
		t.Error("esc should clear the query")
	}
	if len(p.items) != 4 {
		t.Errorf("clearing filter should restore the list, got %d items", len(p.items))
	}
}

func TestPanelQuitKeys(t *testing.T) {
	p, _, _ := newTestPanel(t)
	drainStore(t, p)

	cmd := press(p, "q")
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce a quit message")
	}
}

func TestPanelHelpOverlay(t *testing.T) {
	p, _, _ := newTestPanel(t)
	drainStore(t, p)

	press(p, "?")
	if !p.help.IsVisible() {
		t.Fatal("? should open help")
	}
	view := p.View()
	if !strings.Contains(view, "KEYBOARD SHORTCUTS") {
		t.Error("help view should list shortcuts")
	}

	press(p, "j")
	if p.help.IsVisible() {
		t.Error("any key should close help")
	}
}

func TestPanelViewStates(t *testing.T) {
	p, st, _ := newTestPanel(t)

	if !strings.Contains(p.View(), "loading") {
		t.Error("view before first data should show loading")
	}

	insertRow(t, st, "%1", "/home/u/alpha")
	drainStore(t, p)
	p.Update(panesMsg{panes: []group.PaneInfo{testPane("%1", "/home/u/alpha", 1)}})

	view := p.View()
	for _, want := range []string{"agentoast", "alpha", "claude", "Stop", "quit", "1 unread"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	p.width = 20
	if !strings.Contains(p.View(), "too small") {
		t.Error("narrow terminal should show the size warning")
	}
}

func TestPanelEmptyView(t *testing.T) {
	p, _, _ := newTestPanel(t)
	drainStore(t, p)

	view := p.View()
	if !strings.Contains(view, "no agent panes or notifications") {
		t.Error("empty panel should say so")
	}
}
