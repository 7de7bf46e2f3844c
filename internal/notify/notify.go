package notify

import (
	"context"
	"log/slog"

	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/platform"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/tmux"
)

// Service is the single ingest path for notification events. Both the poll
// loop and the hook adapters call Send; the suppression policy and the
// store's replace-by-pane invariant apply identically to both.
type Service struct {
	store *store.Store
	bus   *Bus
	log   *slog.Logger

	focusPane   func(ctx context.Context, paneID string) error
	focusApp    func(ctx context.Context, bundleID string) error
	paneVisible func(ctx context.Context, paneID string) (bool, error)
}

// Option adjusts a Service, mainly to stub side effects in tests.
type Option func(*Service)

func WithFocusPane(fn func(ctx context.Context, paneID string) error) Option {
	return func(s *Service) { s.focusPane = fn }
}

func WithFocusApp(fn func(ctx context.Context, bundleID string) error) Option {
	return func(s *Service) { s.focusApp = fn }
}

func WithPaneVisible(fn func(ctx context.Context, paneID string) (bool, error)) Option {
	return func(s *Service) { s.paneVisible = fn }
}

func NewService(st *store.Store, bus *Bus, opts ...Option) *Service {
	s := &Service{
		store:       st,
		bus:         bus,
		log:         logging.ForComponent(logging.CompStore),
		focusPane:   tmux.FocusPane,
		focusApp:    platform.ActivateApp,
		paneVisible: tmux.PaneVisible,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send runs one candidate event through the policy and performs the chosen
// action. The returned notification is nil for focus-only events.
func (s *Service) Send(ctx context.Context, in store.Input) (Action, *store.Notification, error) {
	muted := s.isMuted(in.Repo)

	visible := false
	if !muted && !in.ForceFocus && in.TmuxPane != "" {
		v, err := s.paneVisible(ctx, in.TmuxPane)
		if err != nil {
			s.log.Debug("pane visibility check failed", "pane", in.TmuxPane, "error", err)
		} else {
			visible = v
		}
	}

	action := Decide(muted, in.ForceFocus, visible)
	s.log.Debug("suppression decision",
		"action", action.String(), "pane", in.TmuxPane, "repo", in.Repo, "badge", in.Badge)

	if action == ActionFocusOnly {
		return action, nil, s.focus(ctx, in.TmuxPane, in.TerminalBundleID)
	}

	n, err := s.store.Insert(in)
	if err != nil {
		return action, nil, err
	}
	s.bus.Publish(NotificationStored{Notification: *n})
	if action.Toasts() {
		s.bus.Publish(ToastRequested{Batch: []store.Notification{*n}})
	}
	return action, n, nil
}

// Focus switches the terminal to a notification's pane, activating the
// recorded terminal app first when one is known.
func (s *Service) Focus(ctx context.Context, paneID, bundleID string) error {
	return s.focus(ctx, paneID, bundleID)
}

func (s *Service) focus(ctx context.Context, paneID, bundleID string) error {
	if bundleID != "" {
		if err := s.focusApp(ctx, bundleID); err != nil {
			s.log.Warn("terminal activation failed", "bundle", bundleID, "error", err)
		}
	}
	if paneID == "" {
		return nil
	}
	return s.focusPane(ctx, paneID)
}

func (s *Service) isMuted(repo string) bool {
	mute, err := s.store.LoadMuteState()
	if err != nil {
		// A broken mute read must not swallow notifications.
		s.log.Warn("mute state unavailable, treating as unmuted", "error", err)
		return false
	}
	return mute.Muted(repo)
}

// SetGlobalMute persists the global mute flag and announces the change.
func (s *Service) SetGlobalMute(muted bool) error {
	if err := s.store.SetGlobalMute(muted); err != nil {
		return err
	}
	s.publishMute()
	return nil
}

// SetRepoMute persists a per-group mute flag and announces the change.
func (s *Service) SetRepoMute(repo string, muted bool) error {
	if err := s.store.SetRepoMute(repo, muted); err != nil {
		return err
	}
	s.publishMute()
	return nil
}

func (s *Service) publishMute() {
	mute, err := s.store.LoadMuteState()
	if err != nil {
		s.log.Warn("mute state reload failed", "error", err)
		return
	}
	s.bus.Publish(MuteChanged{State: mute})
}
