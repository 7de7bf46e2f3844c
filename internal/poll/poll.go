// Package poll drives the pane observation cycle: enumerate panes, classify
// agent processes, detect status, and turn status transitions into
// notifications.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shuntaka9576/agentoast/internal/agent"
	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/git"
	"github.com/shuntaka9576/agentoast/internal/group"
	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/platform"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/tmux"
)

const backoffCap = 30 * time.Second

// Sender is the notification ingest the poller feeds. notify.Service
// implements it.
type Sender interface {
	Send(ctx context.Context, in store.Input) (notify.Action, *store.Notification, error)
}

// gitLookup resolves one pane path to (repo root, branch) within a cycle.
type gitLookup func(ctx context.Context, path string) (root, branch string)

type paneState struct {
	agentType agent.Type
	result    agent.Result
}

// Poller owns one observation loop's state: compiled rule tables and the
// per-pane previous status the detector needs.
type Poller struct {
	interval time.Duration
	sender   Sender
	log      *slog.Logger

	rules map[agent.Type]*agent.Rules
	prev  map[string]paneState
	wait  backoff

	listPanes    func(ctx context.Context) ([]tmux.Pane, error)
	procSnapshot func(ctx context.Context) (*agent.ProcessSnapshot, error)
	capture      func(ctx context.Context, paneID string) (string, error)
	newGitLookup func() gitLookup
}

// Option adjusts a Poller, mainly to stub externals in tests.
type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
			p.wait.base = d
		}
	}
}

func WithListPanes(fn func(ctx context.Context) ([]tmux.Pane, error)) Option {
	return func(p *Poller) { p.listPanes = fn }
}

func WithProcessSnapshot(fn func(ctx context.Context) (*agent.ProcessSnapshot, error)) Option {
	return func(p *Poller) { p.procSnapshot = fn }
}

func WithCapture(fn func(ctx context.Context, paneID string) (string, error)) Option {
	return func(p *Poller) { p.capture = fn }
}

func WithGitLookup(fn gitLookup) Option {
	return func(p *Poller) { p.newGitLookup = func() gitLookup { return fn } }
}

// New builds a poller. A nil sender gives a display-only poller whose Tick
// never emits notifications, which is what the panel uses for its own
// refresh cycle.
func New(sender Sender, cfg *config.UserConfig, opts ...Option) *Poller {
	if cfg == nil {
		cfg = &config.UserConfig{}
	}
	p := &Poller{
		interval:     time.Duration(cfg.Poll.Interval()) * time.Millisecond,
		sender:       sender,
		log:          logging.ForComponent(logging.CompPoller),
		prev:         make(map[string]paneState),
		listPanes:    tmux.ListPanes,
		procSnapshot: agent.TakeProcessSnapshot,
		capture:      tmux.CapturePane,
	}
	p.wait = backoff{base: p.interval, cap: backoffCap}
	p.newGitLookup = func() gitLookup {
		cache := git.NewCache()
		return func(ctx context.Context, path string) (string, string) {
			root := cache.Root(ctx, path)
			return root, cache.BranchOf(ctx, root)
		}
	}
	p.SetRules(RulesFromConfig(cfg))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RulesFromConfig compiles the per-agent rule tables with user overrides
// layered over the defaults.
func RulesFromConfig(cfg *config.UserConfig) map[agent.Type]*agent.Rules {
	rules := make(map[agent.Type]*agent.Rules, len(agent.KnownTypes()))
	for _, typ := range agent.KnownTypes() {
		defaults, _ := agent.DefaultRules(typ)
		merged := defaults
		if cfg != nil {
			if ar, ok := cfg.Agents[string(typ)]; ok {
				overrides := agent.RawRules{
					SpinnerChars:    ar.SpinnerChars,
					BusyPatterns:    ar.BusyPatterns,
					WaitingPatterns: waitingRules(ar.WaitingPatterns),
				}
				if ar.PromptGlyph != "" {
					overrides.PromptGlyphs = []string{ar.PromptGlyph}
				}
				merged = agent.Merge(defaults, overrides,
					ar.ExtraSpinnerChars, waitingRules(ar.ExtraWaitingPatterns))
			}
		}
		rules[typ] = merged.Compile(typ)
	}
	return rules
}

func waitingRules(patterns []string) []agent.WaitingRule {
	if len(patterns) == 0 {
		return nil
	}
	out := make([]agent.WaitingRule, len(patterns))
	for i, pat := range patterns {
		out[i] = agent.WaitingRule{Pattern: pat, Label: "respond"}
	}
	return out
}

// SetRules swaps the compiled rule tables, used on config reload.
func (p *Poller) SetRules(rules map[agent.Type]*agent.Rules) {
	p.rules = rules
}

// Run polls until the context ends. Enumeration failures widen the
// interval; a wedged cycle is cut off at one interval so the loop can
// never fall behind its own schedule.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poll loop started", "interval", p.interval)
	for {
		tickCtx, cancel := context.WithTimeout(ctx, p.interval)
		if _, err := p.Tick(tickCtx); err != nil {
			p.log.Warn("poll cycle degraded", "error", err, "consecutive_failures", p.wait.failures)
		}
		cancel()

		select {
		case <-ctx.Done():
			p.log.Info("poll loop stopped")
			return ctx.Err()
		case <-time.After(p.wait.delay()):
		}
	}
}

// Tick runs one observation cycle and returns the annotated agent panes.
// With a sender attached, status transitions also produce notifications.
func (p *Poller) Tick(ctx context.Context) ([]group.PaneInfo, error) {
	panes, err := p.listPanes(ctx)
	if err != nil {
		p.wait.failure()
		return nil, fmt.Errorf("enumerating panes: %w", err)
	}
	p.wait.success()

	procs, err := p.procSnapshot(ctx)
	if err != nil {
		// Without a process table, reuse the last known classification
		// rather than flapping every pane to null.
		p.log.Debug("process snapshot unavailable", "error", err)
		procs = nil
	}

	lookup := p.newGitLookup()
	seen := make(map[string]bool, len(panes))
	var infos []group.PaneInfo

	for _, pane := range panes {
		seen[pane.ID] = true
		prev, known := p.prev[pane.ID]

		typ := prev.agentType
		if procs != nil {
			typ = procs.AgentTypeFor(pane.PID)
		}
		if typ == agent.TypeNone {
			// Agent gone (or never there): status returns to null.
			delete(p.prev, pane.ID)
			continue
		}

		screen, err := p.capture(ctx, pane.ID)
		if err != nil {
			p.log.Debug("capture failed", "pane", pane.ID, "error", err)
			screen = ""
		}
		res := agent.Detect(p.rules[typ], screen, prev.result)

		root, branch := lookup(ctx, pane.Path)
		info := group.PaneInfo{
			Pane:      pane,
			AgentType: typ,
			Agent:     res,
			RepoRoot:  root,
			Branch:    branch,
		}
		infos = append(infos, info)

		if p.sender != nil && known && prev.agentType == typ {
			p.notifyTransition(ctx, info, prev.result, res)
		}
		p.prev[pane.ID] = paneState{agentType: typ, result: res}
	}

	for id := range p.prev {
		if !seen[id] {
			delete(p.prev, id)
			tmux.InvalidateCapture(id)
		}
	}
	return infos, nil
}

// notifyTransition maps a status change to a notification. Only departures
// from running are interesting: that is the moment the agent stops making
// progress on its own.
func (p *Poller) notifyTransition(ctx context.Context, info group.PaneInfo, prev, cur agent.Result) {
	if prev.Status != agent.StatusRunning || cur.Status == prev.Status {
		return
	}

	var in store.Input
	switch cur.Status {
	case agent.StatusWaiting:
		in = store.Input{
			Badge:      "Waiting",
			Body:       fmt.Sprintf("%s is waiting for your response", info.AgentType),
			BadgeColor: store.ColorBlue,
		}
	case agent.StatusIdle:
		in = store.Input{
			Badge:      "Done",
			Body:       fmt.Sprintf("%s finished and is idle", info.AgentType),
			BadgeColor: store.ColorGreen,
		}
	default:
		return
	}

	in.Icon = string(info.AgentType)
	in.Repo = info.RepoRoot
	if in.Repo == "" {
		in.Repo = info.Pane.Path
	}
	in.TmuxPane = info.Pane.ID
	in.TerminalBundleID = platform.CurrentTerminalBundleID()
	in.Metadata = map[string]string{
		"agent":   string(info.AgentType),
		"session": info.Pane.Session,
		"window":  info.Pane.WindowName,
	}
	if info.Branch != "" {
		in.Metadata["branch"] = info.Branch
	}

	if _, _, err := p.sender.Send(ctx, in); err != nil {
		// A storage failure costs this notification, never the loop.
		p.log.Warn("transition notification failed",
			"pane", info.Pane.ID, "badge", in.Badge, "error", err)
	}
}
