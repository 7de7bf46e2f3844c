package tmux

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// captureCacheTTL keeps repeated captures of the same pane within one poll
// cycle from hitting the tmux server more than once.
const captureCacheTTL = 500 * time.Millisecond

type captureEntry struct {
	text string
	at   time.Time
}

var (
	captureMu    sync.Mutex
	captureCache = make(map[string]captureEntry)
	captureGroup singleflight.Group
)

// CapturePane returns the visible screen text of a pane. Concurrent callers
// for the same pane share one tmux invocation, and results are cached
// briefly.
func CapturePane(ctx context.Context, paneID string) (string, error) {
	captureMu.Lock()
	if e, ok := captureCache[paneID]; ok && time.Since(e.at) < captureCacheTTL {
		captureMu.Unlock()
		return e.text, nil
	}
	captureMu.Unlock()

	v, err, _ := captureGroup.Do(paneID, func() (any, error) {
		text, err := runTmux(ctx, "capture-pane", "-p", "-t", paneID)
		if err != nil {
			return "", err
		}
		captureMu.Lock()
		captureCache[paneID] = captureEntry{text: text, at: time.Now()}
		captureMu.Unlock()
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// InvalidateCapture drops a pane's cached capture, used when a pane exits
// between cycles.
func InvalidateCapture(paneID string) {
	captureMu.Lock()
	delete(captureCache, paneID)
	captureMu.Unlock()
}

func resetCaptureCache() {
	captureMu.Lock()
	captureCache = make(map[string]captureEntry)
	captureMu.Unlock()
}
