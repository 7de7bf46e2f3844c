package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitSignal(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Events():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatcher_SignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentoast.db")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Start(context.Background(), path, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Close()

	// Give the watcher a beat to register before mutating.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitSignal(t, w, 3*time.Second) {
		t.Fatal("no signal after write")
	}
}

func TestWatcher_SiblingJournalTriggersSignal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentoast.db")
	if err := os.WriteFile(path, []byte("db"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Start(context.Background(), path, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Close()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path+"-wal", []byte("wal"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitSignal(t, w, 3*time.Second) {
		t.Fatal("no signal after journal write")
	}
}

func TestWatcher_UnrelatedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentoast.db")
	if err := os.WriteFile(path, []byte("db"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Start(context.Background(), path, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Close()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if waitSignal(t, w, 300*time.Millisecond) {
		t.Fatal("signal fired for an unrelated file")
	}
}

func TestWatcher_PollFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentoast.db")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Start(context.Background(), path, Options{
		ForcePoll:        true,
		FallbackInterval: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Close()

	if !w.Polling() {
		t.Fatal("ForcePoll did not engage polling mode")
	}

	if err := os.WriteFile(path, []byte("v2 longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitSignal(t, w, 3*time.Second) {
		t.Fatal("poll fallback missed the change")
	}
}

func TestWatcher_CloseStops(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentoast.db")
	if err := os.WriteFile(path, []byte("db"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Start(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Close()
	// Close blocks until the loop exits; reaching here is the assertion.
}
