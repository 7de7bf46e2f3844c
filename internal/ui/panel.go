// Package ui renders the tmux popup panel: agent panes grouped by
// repository, their notifications, and the transient toast banner, all fed
// live from the store and the pane poller.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/shuntaka9576/agentoast/internal/agent"
	"github.com/shuntaka9576/agentoast/internal/clipboard"
	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/group"
	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/poll"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/tmux"
	"github.com/shuntaka9576/agentoast/internal/toast"
	"github.com/shuntaka9576/agentoast/internal/watch"
)

var uiLog = logging.ForComponent(logging.CompUI)

type tickMsg time.Time

type storeChangedMsg struct{}

type configChangedMsg struct{}

type themeChangedMsg string

type toastChangedMsg struct{}

type panesMsg struct {
	panes []group.PaneInfo
	err   error
}

type storeDataMsg struct {
	rows   []store.Notification
	mute   store.MuteState
	unread int
	toasts []store.Notification
	err    error
}

type actionDoneMsg struct {
	note string
	err  error
}

type noteExpiredMsg int

// chrome is the fixed line count around the list: title, filter line,
// bottom divider, footer.
const chrome = 4

// bannerLines is the height of the toast overlay including its border.
const bannerLines = 5

// PanelOptions wire the panel to its store and config.
type PanelOptions struct {
	Store  *store.Store
	Config *config.UserConfig

	// DBPath enables live refresh via file watching when non-empty.
	DBPath string

	// ConfigPath enables config hot reload when non-empty.
	ConfigPath string
}

// Panel is the root bubbletea model.
type Panel struct {
	ctx    context.Context
	cancel context.CancelFunc

	st     *store.Store
	svc    *notify.Service
	poller *poll.Poller
	queue  *toast.Queue

	tailMu sync.Mutex
	tail   *notify.Tail

	storeWatcher  *watch.Watcher
	configWatcher *watch.Watcher
	themeWatcher  *ThemeWatcher
	toastCh       chan struct{}

	interval    time.Duration
	configTheme string

	width  int
	height int
	ready  bool

	panes  []group.PaneInfo
	rows   []store.Notification
	mute   store.MuteState
	unread int

	items      []group.Item
	cursor     int
	viewOffset int
	selected   group.Identity

	filter    *Filter
	help      *HelpOverlay
	toastSnap toast.Snapshot

	note    string
	noteSeq int
	err     error

	// Side effect seams, stubbed in tests.
	paneVisible func(ctx context.Context, paneID string) (bool, error)
	copyText    func(text string) (*clipboard.Result, error)
	now         func() time.Time
}

// NewPanel builds the panel model. Watchers that cannot start are logged
// and skipped; the interval tick keeps the view fresh without them.
func NewPanel(opts PanelOptions) (*Panel, error) {
	if opts.Store == nil {
		return nil, errors.New("panel requires a store")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.UserConfig{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Panel{
		ctx:         ctx,
		cancel:      cancel,
		st:          opts.Store,
		svc:         notify.NewService(opts.Store, nil),
		poller:      poll.New(nil, cfg),
		interval:    time.Duration(cfg.Poll.Interval()) * time.Millisecond,
		configTheme: cfg.Theme,
		mute:        store.NewMuteState(),
		cursor:      -1,
		filter:      NewFilter(),
		help:        NewHelpOverlay(),
		toastCh:     make(chan struct{}, 1),
		paneVisible: tmux.PaneVisible,
		copyText:    clipboard.Copy,
		now:         time.Now,
	}

	p.queue = toast.NewQueue(toast.Options{
		Duration:   time.Duration(cfg.Toast.Duration()) * time.Millisecond,
		Persistent: cfg.Toast.Persistent,
		OnChange: func(toast.Snapshot) {
			select {
			case p.toastCh <- struct{}{}:
			default:
			}
		},
	})

	tail, err := notify.NewTail(opts.Store)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("starting notification tail: %w", err)
	}
	p.tail = tail

	if opts.DBPath != "" {
		w, err := watch.Start(ctx, opts.DBPath, watch.Options{})
		if err != nil {
			uiLog.Warn("store_watch_unavailable", slog.String("error", err.Error()))
		} else {
			p.storeWatcher = w
		}
	}
	if opts.ConfigPath != "" {
		w, err := watch.Start(ctx, opts.ConfigPath, watch.Options{})
		if err != nil {
			uiLog.Warn("config_watch_unavailable", slog.String("error", err.Error()))
		} else {
			p.configWatcher = w
		}
	}
	if cfg.Theme == "system" {
		p.themeWatcher = NewThemeWatcher(ctx)
	}

	return p, nil
}

// Close releases watchers and background resources. Call after the
// bubbletea program exits.
func (p *Panel) Close() {
	p.cancel()
	if p.storeWatcher != nil {
		p.storeWatcher.Close()
	}
	if p.configWatcher != nil {
		p.configWatcher.Close()
	}
	if p.themeWatcher != nil {
		p.themeWatcher.Close()
	}
	p.queue.Clear()
}

func (p *Panel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		p.refreshStore(),
		p.refreshPanes(),
		tickCmd(p.interval),
		listenSignal(p.toastCh, toastChangedMsg{}),
	}
	if p.storeWatcher != nil {
		cmds = append(cmds, listenSignal(p.storeWatcher.Events(), storeChangedMsg{}))
	}
	if p.configWatcher != nil {
		cmds = append(cmds, listenSignal(p.configWatcher.Events(), configChangedMsg{}))
	}
	if p.themeWatcher != nil {
		cmds = append(cmds, listenTheme(p.themeWatcher.Changes()))
	}
	return tea.Batch(cmds...)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// listenSignal converts one receive on ch into msg. Re-armed by the
// handler after every delivery, matching bubbletea's channel idiom.
func listenSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

func listenTheme(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		name, ok := <-ch
		if !ok {
			return nil
		}
		return themeChangedMsg(name)
	}
}

// refreshStore reloads notifications and mute state, and drains the tail:
// rows inserted since the last drain re-run the suppression decision
// against current state, and the survivors become toasts.
func (p *Panel) refreshStore() tea.Cmd {
	return func() tea.Msg {
		rows, err := p.st.List(0)
		if err != nil {
			return storeDataMsg{err: err}
		}
		mute, err := p.st.LoadMuteState()
		if err != nil {
			return storeDataMsg{err: err}
		}
		unread, err := p.st.UnreadCount()
		if err != nil {
			return storeDataMsg{err: err}
		}
		msg := storeDataMsg{rows: rows, mute: mute, unread: unread}

		p.tailMu.Lock()
		fresh, err := p.tail.Next()
		p.tailMu.Unlock()
		if err != nil {
			uiLog.Warn("tail_read_failed", slog.String("error", err.Error()))
			return msg
		}

		ctx, cancel := context.WithTimeout(p.ctx, 2*time.Second)
		defer cancel()
		for _, n := range fresh {
			visible := false
			if n.TmuxPane != "" {
				if v, err := p.paneVisible(ctx, n.TmuxPane); err == nil {
					visible = v
				}
			}
			if notify.Decide(mute.Muted(n.Repo), n.ForceFocus, visible).Toasts() {
				msg.toasts = append(msg.toasts, n)
			}
		}
		return msg
	}
}

func (p *Panel) refreshPanes() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
		defer cancel()
		panes, err := p.poller.Tick(ctx)
		return panesMsg{panes: panes, err: err}
	}
}

func (p *Panel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		p.help.SetSize(msg.Width, msg.Height)
		p.scrollIntoView()
		return p, nil

	case tickMsg:
		return p, tea.Batch(p.refreshPanes(), p.refreshStore(), tickCmd(p.interval))

	case storeChangedMsg:
		cmds := []tea.Cmd{p.refreshStore()}
		if p.storeWatcher != nil {
			cmds = append(cmds, listenSignal(p.storeWatcher.Events(), storeChangedMsg{}))
		}
		return p, tea.Batch(cmds...)

	case configChangedMsg:
		p.reloadConfig()
		if p.configWatcher != nil {
			return p, listenSignal(p.configWatcher.Events(), configChangedMsg{})
		}
		return p, nil

	case themeChangedMsg:
		if p.configTheme == "system" {
			InitTheme(string(msg))
		}
		if p.themeWatcher != nil {
			return p, listenTheme(p.themeWatcher.Changes())
		}
		return p, nil

	case toastChangedMsg:
		p.toastSnap = p.queue.Snapshot()
		p.scrollIntoView()
		return p, listenSignal(p.toastCh, toastChangedMsg{})

	case panesMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, tmux.ErrNoServer) {
				p.err = msg.err
			} else {
				p.panes = nil
				p.err = nil
			}
		} else {
			p.panes = msg.panes
			p.err = nil
		}
		p.rebuild()
		return p, nil

	case storeDataMsg:
		if msg.err != nil {
			p.err = msg.err
			return p, nil
		}
		p.rows = msg.rows
		p.mute = msg.mute
		p.unread = msg.unread
		p.ready = true
		p.err = nil
		if len(msg.toasts) > 0 {
			p.queue.Push(msg.toasts)
		}
		p.rebuild()
		return p, nil

	case actionDoneMsg:
		if msg.err != nil {
			p.err = msg.err
			return p, p.refreshStore()
		}
		p.err = nil
		return p, tea.Batch(p.refreshStore(), p.setNote(msg.note))

	case noteExpiredMsg:
		if int(msg) == p.noteSeq {
			p.note = ""
		}
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return p, nil
}

// setNote shows a transient footer note for a few seconds.
func (p *Panel) setNote(note string) tea.Cmd {
	if note == "" {
		return nil
	}
	p.note = note
	p.noteSeq++
	seq := p.noteSeq
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return noteExpiredMsg(seq)
	})
}

func (p *Panel) reloadConfig() {
	cfg, err := config.Reload()
	if err != nil {
		uiLog.Warn("config_reload_failed", slog.String("error", err.Error()))
		return
	}
	p.poller.SetRules(poll.RulesFromConfig(cfg))
	p.interval = time.Duration(cfg.Poll.Interval()) * time.Millisecond
	p.configTheme = cfg.Theme
	if cfg.Theme != "system" {
		InitTheme(ResolveTheme(cfg.Theme))
	}
	uiLog.Info("config_reloaded")
}

func (p *Panel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if p.help.IsVisible() {
		p.help.Update(msg)
		return p, nil
	}

	if p.filter.Active() {
		switch msg.String() {
		case "esc":
			p.filter.Clear()
			p.rebuild()
		case "enter":
			p.filter.Accept()
		default:
			cmd := p.filter.Update(msg)
			p.rebuild()
			return p, cmd
		}
		return p, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return p, tea.Quit

	case "j", "down":
		p.moveCursor(1)

	case "k", "up":
		p.moveCursor(-1)

	case "g":
		p.setCursor(0)

	case "G":
		p.setCursor(len(p.items) - 1)

	case "enter":
		return p, p.activateSelected()

	case "d":
		return p, p.deleteSelected()

	case "r":
		return p, p.markSelectedRead()

	case "R":
		return p, p.markAllRead()

	case "m":
		return p, p.toggleRepoMute()

	case "M":
		return p, p.toggleGlobalMute()

	case "y":
		return p, p.copySelected()

	case "o":
		return p, p.clickToast()

	case "x":
		p.queue.Advance()

	case "/":
		return p, p.filter.Open()

	case "?":
		p.help.Show()

	case "esc":
		if p.filter.Query() != "" {
			p.filter.Clear()
			p.rebuild()
		}

	case "ctrl+r":
		return p, tea.Batch(p.refreshPanes(), p.refreshStore())
	}
	return p, nil
}

func (p *Panel) moveCursor(delta int) {
	p.setCursor(p.cursor + delta)
}

func (p *Panel) setCursor(idx int) {
	if len(p.items) == 0 {
		p.cursor = -1
		p.selected = group.Identity{}
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.items) {
		idx = len(p.items) - 1
	}
	p.cursor = idx
	p.selected = p.items[idx].Identity()
	p.scrollIntoView()
}

// rebuild recomputes the grouped list from current panes and rows, keeping
// the selection on the same entity wherever it moved.
func (p *Panel) rebuild() {
	items := group.Flatten(group.Build(p.panes, p.rows))
	items = p.filter.Apply(items)
	p.items = items

	if idx := group.FindIndex(items, p.selected); idx >= 0 {
		p.cursor = idx
	} else {
		p.cursor = group.ClampIndex(items, p.cursor)
	}
	if p.cursor >= 0 && p.cursor < len(items) {
		p.selected = items[p.cursor].Identity()
	} else {
		p.selected = group.Identity{}
	}
	p.scrollIntoView()
}

func (p *Panel) selectedItem() (group.Item, bool) {
	if p.cursor < 0 || p.cursor >= len(p.items) {
		return group.Item{}, false
	}
	return p.items[p.cursor], true
}

// activateSelected focuses the selected pane. A header jumps into its first
// row; an orphan can only be acknowledged.
func (p *Panel) activateSelected() tea.Cmd {
	it, ok := p.selectedItem()
	if !ok {
		return nil
	}
	switch it.Kind {
	case group.ItemHeader:
		if p.cursor+1 < len(p.items) && p.items[p.cursor+1].Kind != group.ItemHeader {
			p.moveCursor(1)
		}
		return nil

	case group.ItemPane:
		paneID := it.Row.Pane.Pane.ID
		var notifID int64
		var bundle string
		if n := it.Row.Notification; n != nil {
			notifID = n.ID
			bundle = n.TerminalBundleID
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
			defer cancel()
			if err := p.svc.Focus(ctx, paneID, bundle); err != nil {
				return actionDoneMsg{err: err}
			}
			if notifID != 0 {
				if err := p.st.MarkRead(notifID); err != nil {
					return actionDoneMsg{err: err}
				}
			}
			return actionDoneMsg{note: "focused " + paneID}
		}

	case group.ItemOrphan:
		notifID := it.Row.Notification.ID
		return func() tea.Msg {
			if err := p.st.MarkRead(notifID); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{note: "pane is gone, marked read"}
		}
	}
	return nil
}

// deleteSelected removes the selected notification; on a header it clears
// the whole group.
func (p *Panel) deleteSelected() tea.Cmd {
	it, ok := p.selectedItem()
	if !ok {
		return nil
	}
	switch it.Kind {
	case group.ItemHeader:
		if it.GroupKey == group.OrphanKey {
			ids := notificationIDs(it.Group)
			return func() tea.Msg {
				for _, id := range ids {
					if err := p.st.Delete(id); err != nil {
						return actionDoneMsg{err: err}
					}
				}
				return actionDoneMsg{note: fmt.Sprintf("deleted %d notifications", len(ids))}
			}
		}
		key := it.GroupKey
		return func() tea.Msg {
			if err := p.st.DeleteByGroup(key); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{note: "cleared group"}
		}

	default:
		n := it.Row.Notification
		if n == nil {
			return p.setNote("nothing to delete")
		}
		id := n.ID
		return func() tea.Msg {
			if err := p.st.Delete(id); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{note: "deleted"}
		}
	}
}

func notificationIDs(g *group.Group) []int64 {
	if g == nil {
		return nil
	}
	var ids []int64
	for _, r := range g.Rows {
		if r.Notification != nil {
			ids = append(ids, r.Notification.ID)
		}
	}
	return ids
}

func (p *Panel) markSelectedRead() tea.Cmd {
	it, ok := p.selectedItem()
	if !ok || it.Row == nil || it.Row.Notification == nil {
		return nil
	}
	id := it.Row.Notification.ID
	return func() tea.Msg {
		if err := p.st.MarkRead(id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: "marked read"}
	}
}

func (p *Panel) markAllRead() tea.Cmd {
	return func() tea.Msg {
		if err := p.st.MarkAllRead(); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: "all read"}
	}
}

// toggleRepoMute mutes the repository the selection belongs to. Orphan rows
// carry their own repo; the orphan header has none to mute.
func (p *Panel) toggleRepoMute() tea.Cmd {
	it, ok := p.selectedItem()
	if !ok {
		return nil
	}
	repo := it.GroupKey
	if it.Kind == group.ItemOrphan && it.Row.Notification != nil {
		repo = it.Row.Notification.Repo
	}
	if repo == "" || repo == group.OrphanKey {
		return p.setNote("no repository to mute")
	}
	muted := !p.mute.MutedRepos[repo]
	return func() tea.Msg {
		if err := p.svc.SetRepoMute(repo, muted); err != nil {
			return actionDoneMsg{err: err}
		}
		if muted {
			return actionDoneMsg{note: "muted " + repoName(repo)}
		}
		return actionDoneMsg{note: "unmuted " + repoName(repo)}
	}
}

func (p *Panel) toggleGlobalMute() tea.Cmd {
	muted := !p.mute.GlobalMuted
	return func() tea.Msg {
		if err := p.svc.SetGlobalMute(muted); err != nil {
			return actionDoneMsg{err: err}
		}
		if muted {
			return actionDoneMsg{note: "muted everything"}
		}
		return actionDoneMsg{note: "unmuted"}
	}
}

func (p *Panel) copySelected() tea.Cmd {
	it, ok := p.selectedItem()
	if !ok || it.Row == nil || it.Row.Notification == nil {
		return nil
	}
	body := it.Row.Notification.Body
	return func() tea.Msg {
		res, err := p.copyText(body)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: "copied via " + res.Method}
	}
}

// clickToast activates the toast on screen: delete its row, then focus the
// pane it came from.
func (p *Panel) clickToast() tea.Cmd {
	clicked, ok := p.queue.Click()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
		defer cancel()
		if err := p.st.Delete(clicked.ID); err != nil {
			return actionDoneMsg{err: err}
		}
		if clicked.TmuxPane != "" {
			if err := p.svc.Focus(ctx, clicked.TmuxPane, clicked.TerminalBundleID); err != nil {
				return actionDoneMsg{err: err}
			}
		}
		return actionDoneMsg{note: "opened notification"}
	}
}

func (p *Panel) visibleRows() int {
	rows := p.height - chrome
	if p.toastSnap.State != toast.StateEmpty {
		rows -= bannerLines
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (p *Panel) scrollIntoView() {
	if p.cursor < 0 {
		p.viewOffset = 0
		return
	}
	vis := p.visibleRows()
	if p.cursor < p.viewOffset {
		p.viewOffset = p.cursor
	}
	if p.cursor >= p.viewOffset+vis {
		p.viewOffset = p.cursor - vis + 1
	}
	if p.viewOffset < 0 {
		p.viewOffset = 0
	}
}

func (p *Panel) View() string {
	if p.width == 0 || !p.ready {
		return dimStyle.Render("loading…")
	}
	if p.width < 40 || p.height < 8 {
		return dimStyle.Render("terminal too small")
	}
	if p.help.IsVisible() {
		return p.help.View()
	}

	var b strings.Builder
	b.WriteString(p.renderTitle())
	b.WriteString("\n")
	b.WriteString(p.renderFilterLine())
	b.WriteString("\n")

	if banner := renderToast(p.toastSnap, p.width, p.now()); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}

	b.WriteString(p.renderList())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", p.width)))
	b.WriteString("\n")
	b.WriteString(p.renderFooter())
	return b.String()
}

func (p *Panel) renderTitle() string {
	title := titleStyle.Render("agentoast")
	var extras []string
	if p.unread > 0 {
		extras = append(extras, unreadCountStyle.Render(fmt.Sprintf("%d unread", p.unread)))
	}
	if p.mute.GlobalMuted {
		extras = append(extras, mutedTagStyle.Render("MUTED"))
	}
	if len(extras) == 0 {
		return title
	}
	return title + "  " + strings.Join(extras, "  ")
}

func (p *Panel) renderFilterLine() string {
	if p.filter.Active() || p.filter.Query() != "" {
		return p.filter.View()
	}
	return dimStyle.Render(strings.Repeat("─", p.width))
}

func (p *Panel) renderList() string {
	vis := p.visibleRows()
	if len(p.items) == 0 {
		empty := "no agent panes or notifications"
		if p.filter.Query() != "" {
			empty = "no matches"
		}
		lines := make([]string, vis)
		lines[0] = "  " + dimStyle.Render(empty)
		return strings.Join(lines, "\n")
	}

	end := p.viewOffset + vis
	if end > len(p.items) {
		end = len(p.items)
	}

	lines := make([]string, 0, vis)
	for i := p.viewOffset; i < end; i++ {
		lines = append(lines, p.renderItem(p.items[i], i == p.cursor))
	}
	for len(lines) < vis {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (p *Panel) renderItem(it group.Item, selected bool) string {
	var line string
	switch it.Kind {
	case group.ItemHeader:
		line = p.renderHeaderItem(it)
	case group.ItemPane:
		line = p.renderPaneItem(it)
	case group.ItemOrphan:
		line = p.renderOrphanItem(it)
	}
	if selected {
		pad := p.width - lipgloss.Width(line)
		if pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		return selectedRowStyle.Render(line)
	}
	return line
}

func (p *Panel) renderHeaderItem(it group.Item) string {
	name := it.GroupKey
	count := 0
	if it.Group != nil {
		name = it.Group.Name
		count = len(it.Group.Rows)
	}
	line := groupHeaderStyle.Render("▸ "+name) + " " + groupCountStyle.Render(fmt.Sprintf("(%d)", count))
	if !p.mute.GlobalMuted && p.mute.MutedRepos[it.GroupKey] {
		line += " " + mutedTagStyle.Render("muted")
	}
	return line
}

func (p *Panel) renderPaneItem(it group.Item) string {
	info := it.Row.Pane
	pane := info.Pane

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(StatusIndicator(info.Agent))
	b.WriteString(" ")
	b.WriteString(AgentIcon(info.AgentType))
	b.WriteString(" ")
	b.WriteString(rowStyle.Render(string(info.AgentType)))
	b.WriteString(" ")
	b.WriteString(paneLocationStyle.Render(fmt.Sprintf("%s %s:%d", pane.ID, pane.Session, pane.WindowIndex)))
	if info.Branch != "" {
		b.WriteString(" ")
		b.WriteString(branchStyle.Render(info.Branch))
	}
	if info.Agent.Status == agent.StatusWaiting && info.Agent.WaitingReason != "" {
		b.WriteString(" ")
		b.WriteString(statusWaitingStyle.Render(info.Agent.WaitingReason))
	}
	if n := it.Row.Notification; n != nil {
		b.WriteString("  ")
		b.WriteString(BadgeStyle(n.BadgeColor).Render(n.Badge))
		body := collapseSpace(n.Body)
		if body != "" {
			b.WriteString(" ")
			b.WriteString(dimStyle.Render(truncateTo(body, p.width-lipgloss.Width(b.String())-8)))
		}
		b.WriteString(" ")
		b.WriteString(toastMetaStyle.Render(relativeTime(n.CreatedAt, p.now())))
		if !n.IsRead {
			b.WriteString(" ")
			b.WriteString(unreadDotStyle.Render("●"))
		}
	}
	return b.String()
}

func (p *Panel) renderOrphanItem(it group.Item) string {
	n := it.Row.Notification
	if n == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("✕"))
	b.WriteString(" ")
	b.WriteString(BadgeStyle(n.BadgeColor).Render(n.Badge))
	body := collapseSpace(n.Body)
	if body != "" {
		b.WriteString(" ")
		b.WriteString(rowStyle.Render(truncateTo(body, p.width-lipgloss.Width(b.String())-8)))
	}
	b.WriteString(" ")
	b.WriteString(toastMetaStyle.Render(relativeTime(n.CreatedAt, p.now())))
	if !n.IsRead {
		b.WriteString(" ")
		b.WriteString(unreadDotStyle.Render("●"))
	}
	return b.String()
}

func (p *Panel) renderFooter() string {
	if p.err != nil {
		return errorStyle.Render(truncateTo("error: "+p.err.Error(), p.width-2))
	}
	if p.note != "" {
		return noteStyle.Render(truncateTo(p.note, p.width-2))
	}
	sep := footerStyle.Render(" · ")
	return strings.Join([]string{
		MenuKey("j/k", "move"),
		MenuKey("enter", "focus"),
		MenuKey("d", "delete"),
		MenuKey("m", "mute"),
		MenuKey("/", "filter"),
		MenuKey("?", "help"),
		MenuKey("q", "quit"),
	}, sep)
}

func truncateTo(s string, width int) string {
	if width < 1 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
