package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuntaka9576/agentoast/internal/agent"
	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/tmux"
)

const (
	busyScreen = "✶ Pondering… (3s · esc to interrupt)"
	idleScreen = "Done.\n│ > │\n? for shortcuts"
	waitScreen = "Do you want to make this edit?\n❯ 1. Yes\n   2. No\n"
)

type fakeSender struct {
	mu     sync.Mutex
	inputs []store.Input
	err    error
}

func (f *fakeSender) Send(_ context.Context, in store.Input) (notify.Action, *store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return notify.ActionStoreAndToast, nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return notify.ActionStoreAndToast, &store.Notification{ID: int64(len(f.inputs))}, nil
}

func (f *fakeSender) sent() []store.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Input, len(f.inputs))
	copy(out, f.inputs)
	return out
}

// fixture wires a poller against in-memory tmux, ps, and capture stubs.
// Mutate the maps between ticks to script a scenario.
type fixture struct {
	poller  *Poller
	sender  *fakeSender
	panes   []tmux.Pane
	screens map[string]string
	psTable string

	listErr    error
	captureErr error
	psErr      error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sender:  &fakeSender{},
		screens: map[string]string{},
	}
	f.poller = New(f.sender, &config.UserConfig{},
		WithInterval(10*time.Millisecond),
		WithListPanes(func(context.Context) ([]tmux.Pane, error) {
			if f.listErr != nil {
				return nil, f.listErr
			}
			return f.panes, nil
		}),
		WithProcessSnapshot(func(context.Context) (*agent.ProcessSnapshot, error) {
			if f.psErr != nil {
				return nil, f.psErr
			}
			return agent.ParseProcessTable(f.psTable), nil
		}),
		WithCapture(func(_ context.Context, paneID string) (string, error) {
			if f.captureErr != nil {
				return "", f.captureErr
			}
			return f.screens[paneID], nil
		}),
		WithGitLookup(func(_ context.Context, path string) (string, string) {
			return "/repo/" + path, "main"
		}),
	)
	return f
}

func (f *fixture) addPane(id string, pid int, comm string) tmux.Pane {
	p := tmux.Pane{
		ID:         id,
		Session:    "work",
		WindowName: "editor",
		PID:        pid,
		Path:       "proj",
	}
	f.panes = append(f.panes, p)
	f.psTable += fmt.Sprintf("%d 1 zsh\n%d %d %s\n", pid, pid+1, pid, comm)
	return p
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	_, err := f.poller.Tick(context.Background())
	require.NoError(t, err)
}

func TestTickAnnotatesAgentPanes(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.addPane("%2", 200, "vim")
	f.screens["%1"] = busyScreen

	infos, err := f.poller.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, infos, 1, "non-agent panes are excluded")
	assert.Equal(t, "%1", infos[0].Pane.ID)
	assert.Equal(t, agent.TypeClaude, infos[0].AgentType)
	assert.Equal(t, agent.StatusRunning, infos[0].Agent.Status)
	assert.Equal(t, "/repo/proj", infos[0].RepoRoot)
	assert.Equal(t, "main", infos[0].Branch)
}

func TestFirstObservationIsSilent(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = waitScreen

	f.tick(t)

	assert.Empty(t, f.sender.sent(), "an agent first seen waiting must not notify")
}

func TestRunningToWaitingNotifies(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = busyScreen
	f.tick(t)

	f.screens["%1"] = waitScreen
	f.tick(t)

	sent := f.sender.sent()
	require.Len(t, sent, 1)
	in := sent[0]
	assert.Equal(t, "Waiting", in.Badge)
	assert.Equal(t, store.ColorBlue, in.BadgeColor)
	assert.Contains(t, in.Body, "claude")
	assert.Equal(t, "%1", in.TmuxPane)
	assert.Equal(t, "/repo/proj", in.Repo)
	assert.Equal(t, "claude", in.Metadata["agent"])
	assert.Equal(t, "work", in.Metadata["session"])
	assert.Equal(t, "editor", in.Metadata["window"])
	assert.Equal(t, "main", in.Metadata["branch"])
}

func TestRunningToIdleNotifies(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "codex")
	f.screens["%1"] = "Working (2s • esc to interrupt)"
	f.tick(t)

	f.screens["%1"] = "All tests pass.\n> \nctrl+c to quit"
	f.tick(t)

	sent := f.sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Done", sent[0].Badge)
	assert.Equal(t, store.ColorGreen, sent[0].BadgeColor)
	assert.Contains(t, sent[0].Body, "codex")
}

func TestNoNotificationWithoutTransition(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = waitScreen

	f.tick(t)
	f.tick(t)
	f.tick(t)

	assert.Empty(t, f.sender.sent(), "waiting→waiting repeats must stay quiet")
}

func TestIdleToWaitingStaysQuiet(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = idleScreen
	f.tick(t)

	f.screens["%1"] = waitScreen
	f.tick(t)

	assert.Empty(t, f.sender.sent(), "only departures from running notify")
}

func TestVanishedPaneIsPruned(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = busyScreen
	f.tick(t)

	f.panes = nil
	f.tick(t)

	// The pane returns later in waiting state: with its history pruned,
	// this counts as a fresh first observation.
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = waitScreen
	f.tick(t)

	assert.Empty(t, f.sender.sent())
}

func TestCaptureFailureRetainsStatus(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = busyScreen
	f.tick(t)

	f.captureErr = errors.New("no server running on /tmp/tmux-1000/default")
	infos, err := f.poller.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, infos, 1)
	assert.Equal(t, agent.StatusRunning, infos[0].Agent.Status)
	assert.Empty(t, f.sender.sent())
}

func TestProcessTableFailureReusesClassification(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = busyScreen
	f.tick(t)

	f.psErr = errors.New("ps: exit 1")
	f.screens["%1"] = waitScreen
	f.tick(t)

	sent := f.sender.sent()
	require.Len(t, sent, 1, "a ps hiccup must not drop the transition")
	assert.Equal(t, "Waiting", sent[0].Badge)
}

func TestAgentExitResetsHistory(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = busyScreen
	f.tick(t)

	// The agent process exits; only the shell remains.
	f.psTable = "100 1 zsh\n"
	infos, err := f.poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)

	// A fresh agent launch in the same pane starts silent again.
	f.psTable = "100 1 zsh\n101 100 claude\n"
	f.screens["%1"] = waitScreen
	f.tick(t)
	assert.Empty(t, f.sender.sent())
}

func TestEnumerationFailureWidensDelay(t *testing.T) {
	f := newFixture(t)
	base := f.poller.wait.delay()

	f.listErr = errors.New("tmux: not found")
	_, err := f.poller.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, base, f.poller.wait.delay(), "one failure keeps the base interval")

	_, err = f.poller.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2*base, f.poller.wait.delay())

	_, err = f.poller.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4*base, f.poller.wait.delay())

	f.listErr = nil
	f.tick(t)
	assert.Equal(t, base, f.poller.wait.delay(), "success resets the backoff")
}

func TestNilSenderTicksWithoutNotifying(t *testing.T) {
	f := newFixture(t)
	f.poller.sender = nil
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = busyScreen
	f.tick(t)

	f.screens["%1"] = waitScreen
	infos, err := f.poller.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, infos, 1)
	assert.Equal(t, agent.StatusWaiting, infos[0].Agent.Status)
}

func TestSendErrorDoesNotFailTick(t *testing.T) {
	f := newFixture(t)
	f.addPane("%1", 100, "claude")
	f.screens["%1"] = busyScreen
	f.tick(t)

	f.sender.err = errors.New("database is locked")
	f.screens["%1"] = waitScreen
	f.tick(t)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.poller.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRulesFromConfigAppliesOverrides(t *testing.T) {
	cfg := &config.UserConfig{
		Agents: map[string]config.AgentRules{
			"claude": {
				ExtraWaitingPatterns: []string{"custom approval gate"},
			},
		},
	}
	rules := RulesFromConfig(cfg)
	require.Contains(t, rules, agent.TypeClaude)

	res := agent.Detect(rules[agent.TypeClaude], "Custom Approval Gate\n", agent.Result{})
	assert.Equal(t, agent.StatusWaiting, res.Status)
	assert.Equal(t, agent.ReasonRespond, res.WaitingReason)

	// The stock rules still apply alongside the extras.
	res = agent.Detect(rules[agent.TypeClaude], busyScreen, agent.Result{})
	assert.Equal(t, agent.StatusRunning, res.Status)
}
