package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestForComponent_PicksUpHandlerAfterInit(t *testing.T) {
	// Component logger created before Init (package-level var pattern).
	log := ForComponent(CompPoller)

	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "debug"})
	defer Shutdown()

	log.Info("tick_complete", slog.Int("panes", 3))
	Shutdown()

	data, err := os.ReadFile(filepath.Join(dir, "agentoast.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var rec map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("log line not JSON: %v (%q)", err, line)
	}
	if rec["component"] != CompPoller {
		t.Errorf("component = %v, want %q", rec["component"], CompPoller)
	}
	if rec["msg"] != "tick_complete" {
		t.Errorf("msg = %v, want tick_complete", rec["msg"])
	}
	if rec["panes"] != float64(3) {
		t.Errorf("panes = %v, want 3", rec["panes"])
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "warn"})
	defer Shutdown()

	log := ForComponent(CompStore)
	if log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !log.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestLogger_SafeBeforeInit(t *testing.T) {
	Shutdown()
	// Must not panic and must swallow records.
	Logger().Info("pre_init_record")
	ForComponent(CompUI).Warn("pre_init_component_record")
}

func TestInit_TextFormat(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "info", Format: "text"})
	ForComponent(CompWeb).Info("feed_started")
	Shutdown()

	data, err := os.ReadFile(filepath.Join(dir, "agentoast.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "msg=feed_started") {
		t.Errorf("text format missing msg key: %q", string(data))
	}
	if !strings.Contains(string(data), "component=web") {
		t.Errorf("text format missing component attr: %q", string(data))
	}
}
