package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuntaka9576/agentoast/internal/profile"
)

// withTempConfigHome points XDG_CONFIG_HOME at a temp dir and resets the
// package cache around the test.
func withTempConfigHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(profile.EnvVar, "")
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
	t.Cleanup(func() {
		cacheMu.Lock()
		cache = nil
		cacheMu.Unlock()
	})
	return dir
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	withTempConfigHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, 5000, cfg.Toast.Duration())
	assert.Equal(t, 3000, cfg.Poll.Interval())
	assert.True(t, cfg.Log.GetCompress())
	assert.Equal(t, "127.0.0.1:8787", cfg.Web.ListenAddr())
}

func TestLoad_ParsesFile(t *testing.T) {
	dir := withTempConfigHome(t)

	configDir := filepath.Join(dir, "agentoast")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	content := `
theme = "light"

[toast]
duration_ms = 8000
persistent = true

[poll]
interval_ms = 1500

[log]
level = "debug"
compress = false

[agents.claude]
extra_spinner_chars = ["◆"]
extra_waiting_patterns = ["re:Proceed\\?"]
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, FileName), []byte(content), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.Theme)
	assert.Equal(t, 8000, cfg.Toast.Duration())
	assert.True(t, cfg.Toast.Persistent)
	assert.Equal(t, 1500, cfg.Poll.Interval())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.GetCompress())

	claude, ok := cfg.Agents["claude"]
	require.True(t, ok)
	assert.Equal(t, []string{"◆"}, claude.ExtraSpinnerChars)
	assert.Equal(t, []string{`re:Proceed\?`}, claude.ExtraWaitingPatterns)
}

func TestLoad_MalformedFileFallsBackToDefaults(t *testing.T) {
	dir := withTempConfigHome(t)

	configDir := filepath.Join(dir, "agentoast")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, FileName), []byte("toast = [broken"), 0o600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "dark", cfg.Theme)
}

func TestSaveRoundTrip(t *testing.T) {
	withTempConfigHome(t)

	cfg := &UserConfig{
		Theme: "system",
		Toast: ToastSettings{DurationMS: 2500},
		Agents: map[string]AgentRules{
			"codex": {PromptGlyph: ">"},
		},
	}
	require.NoError(t, Save(cfg))

	loaded, err := Reload()
	require.NoError(t, err)
	assert.Equal(t, "system", loaded.Theme)
	assert.Equal(t, 2500, loaded.Toast.DurationMS)
	assert.Equal(t, ">", loaded.Agents["codex"].PromptGlyph)
}

func TestLoad_CachesAcrossCalls(t *testing.T) {
	withTempConfigHome(t)

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestDataPaths(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv(profile.EnvVar, "")

	dbPath, err := DBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataHome, "agentoast", "agentoast.db"), dbPath)

	logDir, err := LogDir()
	require.NoError(t, err)
	assert.DirExists(t, logDir)
}

func TestDataPaths_ProfileSuffix(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv(profile.EnvVar, "work")

	dbPath, err := DBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataHome, "agentoast-work", "agentoast.db"), dbPath)

	dir, err := Dir()
	require.NoError(t, err)
	assert.Contains(t, dir, "agentoast-work")
}
