package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ResolveTheme maps the configured theme value onto a palette name. "system"
// asks the OS for its current appearance and falls back to dark when the
// platform cannot answer.
func ResolveTheme(configured string) string {
	switch configured {
	case "light", "dark":
		return configured
	}
	isDark, err := dark.IsDarkMode()
	if err != nil {
		uiLog.Warn("system_theme_detect_failed", slog.String("error", err.Error()))
		return "dark"
	}
	if isDark {
		return "dark"
	}
	return "light"
}

// ThemeWatcher follows OS appearance changes so a panel configured with
// theme "system" can restyle itself live. Emits resolved palette names.
type ThemeWatcher struct {
	changeCh  chan string
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching the OS appearance. Returns nil when the
// platform offers no appearance events; callers treat nil as "no watcher".
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watch_unavailable", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changeCh: make(chan string, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.loop(ctx, cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) loop(ctx context.Context, cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			name := "light"
			if isDark {
				name = "dark"
			}
			// Drop the update if the panel has not consumed the last one;
			// only the final state matters.
			select {
			case tw.changeCh <- name:
			default:
			}
		case err, ok := <-errs:
			if ok && err != nil {
				uiLog.Warn("theme_watch_error", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Changes returns the channel of resolved palette names.
func (tw *ThemeWatcher) Changes() <-chan string {
	return tw.changeCh
}

// Close stops the watcher. Safe to call more than once.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}
