// Package watch signals file changes to refresh consumers. It prefers
// fsnotify and degrades to interval polling on filesystems where inotify
// events are unreliable. Signals are advisory: receivers re-derive their
// state from the source of truth, so a spurious or coalesced signal is
// harmless.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/platform"
)

// Options tune a Watcher. Zero values pick the defaults.
type Options struct {
	// Debounce collapses bursts of events into one signal.
	Debounce time.Duration

	// FallbackInterval is the poll period when fsnotify is unavailable.
	FallbackInterval time.Duration

	// ForcePoll skips fsnotify entirely.
	ForcePoll bool
}

const (
	defaultDebounce = 250 * time.Millisecond
	defaultFallback = 2 * time.Second
)

// Watcher emits a signal whenever the watched file (or its siblings sharing
// the same base name prefix, which covers sqlite -wal and -shm files)
// changes.
type Watcher struct {
	events  chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	polling bool
}

// Start begins watching path. Close releases all resources.
func Start(ctx context.Context, path string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.FallbackInterval <= 0 {
		opts.FallbackInterval = defaultFallback
	}
	log := logging.ForComponent(logging.CompWatch)

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		events: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	poll := opts.ForcePoll
	if !poll {
		if warning := platform.WatchWarning(path); warning != "" {
			log.Warn(warning, "path", path)
			poll = true
		}
	}

	var fw *fsnotify.Watcher
	if !poll {
		var err error
		fw, err = fsnotify.NewWatcher()
		if err == nil {
			// Watch the directory: sqlite journal files come and go, and
			// watching the file itself breaks across atomic replaces.
			err = fw.Add(filepath.Dir(path))
		}
		if err != nil {
			log.Warn("file watching unavailable, falling back to polling", "path", path, "error", err)
			if fw != nil {
				_ = fw.Close()
			}
			poll = true
		}
	}

	w.polling = poll
	if poll {
		go w.pollLoop(ctx, path, opts.FallbackInterval)
	} else {
		go w.notifyLoop(ctx, fw, path, opts.Debounce)
	}
	return w, nil
}

// Events is the signal channel. It is buffered and coalescing: a burst of
// changes produces at least one signal, never a backlog.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Polling reports whether the watcher degraded to interval polling.
func (w *Watcher) Polling() bool {
	return w.polling
}

// Close stops the watcher. Pending signals remain readable.
func (w *Watcher) Close() {
	w.cancel()
	<-w.done
}

func (w *Watcher) signal() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}

func (w *Watcher) notifyLoop(ctx context.Context, fw *fsnotify.Watcher, path string, debounce time.Duration) {
	defer close(w.done)
	defer fw.Close()

	base := filepath.Base(path)
	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(debounce)
				pendingC = pending.C
			} else {
				if !pending.Stop() {
					select {
					case <-pending.C:
					default:
					}
				}
				pending.Reset(debounce)
			}
		case <-pendingC:
			pending = nil
			pendingC = nil
			w.signal()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.ForComponent(logging.CompWatch).Debug("watch error", "error", err)
		}
	}
}

// pollLoop signals on a change of size or mtime, checked on a fixed
// interval.
func (w *Watcher) pollLoop(ctx context.Context, path string, interval time.Duration) {
	defer close(w.done)

	var lastSize int64
	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastSize, lastMod = info.Size(), info.ModTime()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.Size() != lastSize || !info.ModTime().Equal(lastMod) {
				lastSize, lastMod = info.Size(), info.ModTime()
				w.signal()
			}
		}
	}
}
