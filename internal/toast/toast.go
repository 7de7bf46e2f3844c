// Package toast implements the transient notification display queue: a
// single display slot fed LIFO, so the newest event is always the one on
// screen, with a position counter standing in for the hidden backlog.
package toast

import (
	"sync"
	"time"

	"github.com/shuntaka9576/agentoast/internal/store"
)

// State is the display slot's lifecycle phase.
type State int

const (
	StateEmpty State = iota
	StateShowing
	StateFadingOut
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateShowing:
		return "showing"
	case StateFadingOut:
		return "fading-out"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the queue for rendering.
type Snapshot struct {
	State   State
	Current *store.Notification
	Index   int
	Total   int
}

// Options configure a Queue.
type Options struct {
	// Duration each entry stays on screen. Ignored when Persistent.
	Duration time.Duration

	// Fade is the hide animation window between the last entry and Empty.
	Fade time.Duration

	// Persistent disables the display timer; entries advance only on
	// user action.
	Persistent bool

	// OnChange fires after every state transition, outside the queue lock.
	OnChange func(Snapshot)
}

const (
	defaultDuration = 5 * time.Second
	defaultFade     = 300 * time.Millisecond
)

// Queue is the toast state machine. All methods are safe for concurrent
// use; timers never outlive the transition that scheduled them.
type Queue struct {
	mu    sync.Mutex
	state State
	queue []store.Notification
	index int
	gen   uint64

	duration   time.Duration
	fade       time.Duration
	persistent bool
	onChange   func(Snapshot)

	cancelTimer func()
	schedule    func(d time.Duration, fn func()) func()
}

func NewQueue(opts Options) *Queue {
	if opts.Duration <= 0 {
		opts.Duration = defaultDuration
	}
	if opts.Fade <= 0 {
		opts.Fade = defaultFade
	}
	q := &Queue{
		duration:   opts.Duration,
		fade:       opts.Fade,
		persistent: opts.Persistent,
		onChange:   opts.OnChange,
	}
	q.schedule = func(d time.Duration, fn func()) func() {
		t := time.AfterFunc(d, fn)
		return func() { t.Stop() }
	}
	return q
}

// Push merges a batch into the queue, newest first. While something is
// showing, the unshown remainder survives, minus entries superseded by an
// incoming item for the same {group, pane}.
func (q *Queue) Push(batch []store.Notification) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()

	incoming := reversed(batch)
	var remainder []store.Notification
	if q.state == StateShowing && q.index < len(q.queue) {
		for _, r := range q.queue[q.index:] {
			if !supersededBy(r, incoming) {
				remainder = append(remainder, r)
			}
		}
	}
	q.queue = append(incoming, remainder...)
	q.index = 0
	q.state = StateShowing
	q.restartTimerLocked(q.duration, q.advanceExpired)

	q.notifyLocked()
}

// Advance moves past the current entry, either because its timer expired or
// the user dismissed it.
func (q *Queue) Advance() {
	q.mu.Lock()
	if q.state != StateShowing {
		q.mu.Unlock()
		return
	}
	q.advanceLocked()
}

// Click consumes the current entry for activation and advances. The caller
// owns the side effects: deleting the notification and focusing its pane.
func (q *Queue) Click() (store.Notification, bool) {
	q.mu.Lock()
	if q.state != StateShowing || q.index >= len(q.queue) {
		q.mu.Unlock()
		return store.Notification{}, false
	}
	clicked := q.queue[q.index]
	q.advanceLocked()
	return clicked, true
}

// Clear hides the surface immediately, dropping all entries.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.cancelTimerLocked()
	q.state = StateEmpty
	q.queue = nil
	q.index = 0
	q.notifyLocked()
}

// Snapshot returns the current display state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// advanceLocked must be entered holding mu; it releases it via notifyLocked.
func (q *Queue) advanceLocked() {
	q.index++
	if q.index < len(q.queue) {
		q.restartTimerLocked(q.duration, q.advanceExpired)
	} else {
		q.state = StateFadingOut
		q.restartTimerLocked(q.fade, q.finishFade)
	}
	q.notifyLocked()
}

func (q *Queue) advanceExpired(gen uint64) {
	q.mu.Lock()
	if gen != q.gen || q.state != StateShowing {
		q.mu.Unlock()
		return
	}
	q.advanceLocked()
}

func (q *Queue) finishFade(gen uint64) {
	q.mu.Lock()
	if gen != q.gen || q.state != StateFadingOut {
		q.mu.Unlock()
		return
	}
	q.state = StateEmpty
	q.queue = nil
	q.index = 0
	q.cancelTimerLocked()
	q.notifyLocked()
}

// restartTimerLocked cancels any outstanding timer and arms a new one bound
// to the current generation, so a callback from a superseded transition can
// never act.
func (q *Queue) restartTimerLocked(d time.Duration, fn func(gen uint64)) {
	q.cancelTimerLocked()
	if q.persistent && q.state == StateShowing {
		return
	}
	gen := q.gen
	q.cancelTimer = q.schedule(d, func() { fn(gen) })
}

func (q *Queue) cancelTimerLocked() {
	q.gen++
	if q.cancelTimer != nil {
		q.cancelTimer()
		q.cancelTimer = nil
	}
}

// notifyLocked snapshots under the lock, releases it, then fires OnChange.
func (q *Queue) notifyLocked() {
	snap := q.snapshotLocked()
	q.mu.Unlock()
	if q.onChange != nil {
		q.onChange(snap)
	}
}

func (q *Queue) snapshotLocked() Snapshot {
	snap := Snapshot{State: q.state, Index: q.index, Total: len(q.queue)}
	if q.state == StateShowing && q.index < len(q.queue) {
		current := q.queue[q.index]
		snap.Current = &current
	}
	return snap
}

func reversed(batch []store.Notification) []store.Notification {
	out := make([]store.Notification, len(batch))
	for i, n := range batch {
		out[len(batch)-1-i] = n
	}
	return out
}

// supersededBy reports whether a queued entry duplicates an incoming one.
// Two entries collide when they share both group and pane; the incoming one
// reflects the row that replaced the stale entry in the store.
func supersededBy(r store.Notification, incoming []store.Notification) bool {
	for _, in := range incoming {
		if r.Repo == in.Repo && r.TmuxPane == in.TmuxPane {
			return true
		}
	}
	return false
}
