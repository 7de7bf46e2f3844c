// Package config loads and persists agentoast user configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML config file for user preferences.
const FileName = "config.toml"

// UserConfig represents user-facing configuration in TOML format.
type UserConfig struct {
	// Theme sets the color scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	// Toast configures the transient notification surface
	Toast ToastSettings `toml:"toast"`

	// Poll configures the pane enumeration loop
	Poll PollSettings `toml:"poll"`

	// Log configures structured logging output
	Log LogSettings `toml:"log"`

	// Web configures the optional dashboard feed and push relay
	Web WebSettings `toml:"web"`

	// Update configures the release check
	Update UpdateSettings `toml:"update"`

	// Agents overrides detection rule tables per agent type.
	// Keys: "claude", "codex", "opencode".
	Agents map[string]AgentRules `toml:"agents"`
}

// ToastSettings configures toast display behavior.
type ToastSettings struct {
	// DurationMS is how long one toast entry stays visible (default: 5000)
	DurationMS int `toml:"duration_ms"`

	// Persistent keeps the toast on screen until clicked or advanced
	Persistent bool `toml:"persistent"`
}

// Duration returns the configured duration with the default applied.
func (t ToastSettings) Duration() int {
	if t.DurationMS <= 0 {
		return 5000
	}
	return t.DurationMS
}

// PollSettings configures the pane poll loop.
type PollSettings struct {
	// IntervalMS between enumeration ticks (default: 3000)
	IntervalMS int `toml:"interval_ms"`
}

// Interval returns the configured poll interval with the default applied.
func (p PollSettings) Interval() int {
	if p.IntervalMS <= 0 {
		return 3000
	}
	return p.IntervalMS
}

// LogSettings configures log output and rotation.
type LogSettings struct {
	// Level: "debug", "info" (default), "warn", "error"
	Level string `toml:"level"`

	// Format: "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB before rotation (default: 10)
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups rotated files to keep (default: 5)
	MaxBackups int `toml:"max_backups"`

	// MaxAgeDays to keep rotated files (default: 10)
	MaxAgeDays int `toml:"max_age_days"`

	// Compress rotated files (default: true; pointer distinguishes unset)
	Compress *bool `toml:"compress"`
}

// GetCompress returns whether rotated logs are compressed, defaulting to true.
func (l LogSettings) GetCompress() bool {
	if l.Compress == nil {
		return true
	}
	return *l.Compress
}

// WebSettings configures the dashboard feed server.
type WebSettings struct {
	// Enabled starts the feed server inside the daemon (default: false)
	Enabled bool `toml:"enabled"`

	// Addr is the listen address (default: 127.0.0.1:8787)
	Addr string `toml:"addr"`

	// PushEnabled turns on Web Push delivery for stored subscriptions
	PushEnabled bool `toml:"push_enabled"`

	// VAPIDPublicKey / VAPIDPrivateKey sign Web Push requests
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`

	// Subscriber is the contact mailto/URL claimed in push requests
	Subscriber string `toml:"subscriber"`
}

// ListenAddr returns the configured address with the default applied.
func (w WebSettings) ListenAddr() string {
	if w.Addr == "" {
		return "127.0.0.1:8787"
	}
	return w.Addr
}

// UpdateSettings configures the GitHub release check.
type UpdateSettings struct {
	// CheckIntervalHours between release checks (default: 1)
	CheckIntervalHours int `toml:"check_interval_hours"`
}

// AgentRules overrides one agent's detection rule table. Empty fields keep
// the built-in defaults; Extra* fields append to them. Patterns prefixed
// with "re:" compile as regular expressions, everything else matches as a
// literal substring.
type AgentRules struct {
	// PromptGlyph replaces the idle prompt marker (e.g. "❯")
	PromptGlyph string `toml:"prompt_glyph"`

	// SpinnerChars replaces the busy spinner alphabet
	SpinnerChars []string `toml:"spinner_chars"`

	// BusyPatterns replaces the busy-context patterns
	BusyPatterns []string `toml:"busy_patterns"`

	// WaitingPatterns replaces the waiting-dialog patterns
	WaitingPatterns []string `toml:"waiting_patterns"`

	// ExtraSpinnerChars appends to the spinner alphabet
	ExtraSpinnerChars []string `toml:"extra_spinner_chars"`

	// ExtraWaitingPatterns appends to the waiting-dialog patterns
	ExtraWaitingPatterns []string `toml:"extra_waiting_patterns"`
}

var defaultUserConfig = UserConfig{
	Theme:  "dark",
	Agents: map[string]AgentRules{},
}

var (
	cache   *UserConfig
	cacheMu sync.RWMutex
)

// Path returns the path to the user config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load loads the user configuration from the TOML file.
// Returns the cached config after first load.
func Load() (*UserConfig, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = &defaultUserConfig
		return cache, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cache = &defaultUserConfig
		return cache, nil
	}

	var cfg UserConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		// Cache the default so a broken file doesn't reparse every call;
		// the error still reaches the user once.
		cache = &defaultUserConfig
		return cache, fmt.Errorf("config.toml parse error: %w", err)
	}

	if cfg.Theme == "" {
		cfg.Theme = "dark"
	}
	if cfg.Agents == nil {
		cfg.Agents = map[string]AgentRules{}
	}

	cache = &cfg
	return cache, nil
}

// Reload forces a reload of the user config.
func Reload() (*UserConfig, error) {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
	return Load()
}

// Save writes the config to config.toml using the atomic write pattern and
// clears the cache so the next Load reads fresh values.
func Save(cfg *UserConfig) error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# agentoast configuration\n")
	buf.WriteString("# Edit this file or run: agentoast config --init\n\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
	return nil
}
