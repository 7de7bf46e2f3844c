package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/store"
)

const hookTimeout = 10 * time.Second

// hookBodyMaxRunes caps agent-message bodies relayed into notifications.
const hookBodyMaxRunes = 200

// claudeHookPayload is the JSON Claude Code pipes to hook commands on
// stdin. Only the fields we need are decoded; unknown fields are ignored.
type claudeHookPayload struct {
	HookEventName    string `json:"hook_event_name"`
	CWD              string `json:"cwd"`
	NotificationType string `json:"notification_type"`
	Message          string `json:"message"`
}

// codexHookPayload is the JSON Codex passes as the notify command's last
// argument.
type codexHookPayload struct {
	Type                 string `json:"type"`
	CWD                  string `json:"cwd"`
	LastAssistantMessage string `json:"last-assistant-message"`
}

// opencodeHookPayload is the JSON an opencode plugin forwards per event.
type opencodeHookPayload struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Directory  string          `json:"directory"`
}

// hookEvent is one normalized hook occurrence: the notification fields the
// adapter derived plus the directory the event happened in. ok=false means
// the event kind carries no notification and is silently skipped.
type hookEvent struct {
	Badge      string
	Body       string
	BadgeColor string
	Icon       string
	Dir        string
}

// parseClaudeHook normalizes a Claude Code hook payload.
func parseClaudeHook(data []byte) (hookEvent, bool, error) {
	var p claudeHookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return hookEvent{}, false, fmt.Errorf("parsing claude hook payload: %w", err)
	}

	ev := hookEvent{Icon: "claude", Dir: p.CWD, Body: p.Message}
	switch p.HookEventName {
	case "Stop":
		ev.Badge = "Stop"
		ev.BadgeColor = store.ColorGreen
	case "Notification":
		if p.NotificationType == "permission" || p.NotificationType == "permission_prompt" {
			ev.Badge = "Permission"
		} else {
			ev.Badge = "Notification"
		}
		ev.BadgeColor = store.ColorBlue
	default:
		return hookEvent{}, false, nil
	}
	return ev, true, nil
}

// parseCodexHook normalizes a Codex notify payload.
func parseCodexHook(data []byte) (hookEvent, bool, error) {
	var p codexHookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return hookEvent{}, false, fmt.Errorf("parsing codex hook payload: %w", err)
	}

	if p.Type != "agent-turn-complete" {
		return hookEvent{}, false, nil
	}
	return hookEvent{
		Badge:      "Stop",
		Body:       truncateRunes(p.LastAssistantMessage, hookBodyMaxRunes),
		BadgeColor: store.ColorGreen,
		Icon:       "codex",
		Dir:        p.CWD,
	}, true, nil
}

// parseOpencodeHook normalizes an opencode plugin event.
func parseOpencodeHook(data []byte) (hookEvent, bool, error) {
	var p opencodeHookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return hookEvent{}, false, fmt.Errorf("parsing opencode hook payload: %w", err)
	}

	ev := hookEvent{Icon: "opencode", Dir: p.Directory}
	switch p.Type {
	case "session.idle":
		ev.Badge = "Stop"
		ev.BadgeColor = store.ColorGreen
	case "session.status":
		// Only the idle sub-status means the agent stopped on its own.
		if !opencodeStatusIdle(p.Properties) {
			return hookEvent{}, false, nil
		}
		ev.Badge = "Stop"
		ev.BadgeColor = store.ColorGreen
	case "session.error":
		ev.Badge = "Error"
		ev.BadgeColor = store.ColorRed
	case "permission.updated", "permission.asked":
		ev.Badge = "Permission"
		ev.BadgeColor = store.ColorBlue
	default:
		return hookEvent{}, false, nil
	}
	return ev, true, nil
}

func opencodeStatusIdle(properties json.RawMessage) bool {
	if len(properties) == 0 {
		return false
	}
	var props struct {
		Status struct {
			Type string `json:"type"`
		} `json:"status"`
	}
	if err := json.Unmarshal(properties, &props); err != nil {
		return false
	}
	return props.Status.Type == "idle"
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// handleHook processes one hook event from an agent CLI. It always exits 0:
// a broken notification pipeline must never block the agent itself. A
// malformed payload is logged and dropped.
func handleHook(args []string) {
	cfg := loadConfig()
	initCLILogging(cfg, false)
	defer logging.Shutdown()
	log := logging.ForComponent(logging.CompHook)

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: agentoast hook claude|codex|opencode [json]")
		return
	}

	agentName := args[0]
	var payload []byte
	switch agentName {
	case "claude":
		data, err := io.ReadAll(os.Stdin)
		if err != nil || len(data) == 0 {
			log.Warn("hook_stdin_unreadable", "agent", agentName)
			return
		}
		payload = data
	case "codex", "opencode":
		if len(args) < 2 {
			log.Warn("hook_payload_missing", "agent", agentName)
			return
		}
		payload = []byte(args[len(args)-1])
	default:
		log.Warn("hook_agent_unknown", "agent", agentName)
		return
	}

	var (
		ev  hookEvent
		ok  bool
		err error
	)
	switch agentName {
	case "claude":
		ev, ok, err = parseClaudeHook(payload)
	case "codex":
		ev, ok, err = parseCodexHook(payload)
	case "opencode":
		ev, ok, err = parseOpencodeHook(payload)
	}
	if err != nil {
		log.Warn("hook_event_malformed", "agent", agentName, "error", err)
		return
	}
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	meta := map[string]string{"agent": agentName}
	in := store.Input{
		Badge:      ev.Badge,
		Body:       ev.Body,
		BadgeColor: ev.BadgeColor,
		Icon:       ev.Icon,
		Metadata:   meta,
		Repo:       resolveRepo(ctx, ev.Dir, meta),
	}
	env := sendEnvFromProcess()
	in.TmuxPane = env.TmuxPane
	in.TerminalBundleID = env.BundleID

	st, err := openStore()
	if err != nil {
		log.Warn("hook_store_unavailable", "agent", agentName, "error", err)
		return
	}
	defer st.Close()

	svc := notify.NewService(st, nil)
	if _, _, err := svc.Send(ctx, in); err != nil {
		log.Warn("hook_send_failed", "agent", agentName, "badge", ev.Badge, "error", err)
	}
}
