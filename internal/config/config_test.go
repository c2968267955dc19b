package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/ax"
	"focusd/internal/focus"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.toml"))
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, 200, cfg.Observer.ActivationPollMs)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Clipboard.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
version = 1

[observer]
activation_poll_ms = 500

[clipboard]
enabled = false
poll_interval_ms = 1000

[output]
format = "text"
`)

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Observer.ActivationPollMs)
	assert.Equal(t, 500*time.Millisecond, cfg.ActivationPoll())
	assert.False(t, cfg.Clipboard.Enabled)
	assert.Equal(t, time.Second, cfg.ClipboardPoll())
	assert.Equal(t, "text", cfg.Output.Format)
	// Untouched sections keep defaults.
	assert.Equal(t, 20, cfg.Tracker.MaxTreeDepth)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "output.format")

	cfg = DefaultConfig()
	cfg.Observer.ActivationPollMs = 10
	assert.ErrorContains(t, cfg.Validate(), "activation_poll_ms")

	cfg = DefaultConfig()
	cfg.Clipboard.PollIntervalMs = 50
	assert.ErrorContains(t, cfg.Validate(), "poll_interval_ms")
}

func TestValidateFillsZeroes(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, 100, cfg.Tracker.MaxChildren)
	assert.Equal(t, 64, cfg.Observer.QueueSize)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FOCUSD_LOG_LEVEL", "debug")
	t.Setenv("FOCUSD_OUTPUT_FORMAT", "text")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "version = 1\n")

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)
	defer l.Close()

	changed := make(chan *Config, 1)
	l.OnChange(func(c *Config) { changed <- c })
	require.NoError(t, l.Watch())

	writeFile(t, path, "version = 1\n\n[output]\nformat = \"text\"\n")

	select {
	case cfg := <-changed:
		assert.Equal(t, "text", cfg.Output.Format)
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatchKeepsOldConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "version = 1\n")

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.Watch())

	writeFile(t, path, "version = [broken\n")

	select {
	case err := <-l.Errors():
		assert.ErrorContains(t, err, "reload config")
	case <-time.After(3 * time.Second):
		t.Fatal("reload error never reported")
	}
	assert.Equal(t, Version, l.Config().Version, "previous config must survive")
}

func TestLoadPolicyDefaults(t *testing.T) {
	pol, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Contains(t, pol.Apps, "com.apple.Safari")
	require.NoError(t, pol.Validate())
}

func TestLoadPolicyMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writeFile(t, path, `
version: 1
apps:
  org.mozilla.firefox:
    url:
      - target: focused
        attribute: AXValue
`)

	pol, err := LoadPolicy(path)
	require.NoError(t, err)

	// User app added, built-ins retained.
	ff := pol.For("org.mozilla.firefox")
	require.Len(t, ff.URL, 1)
	assert.Equal(t, focus.TargetFocused, ff.URL[0].Target)
	assert.Equal(t, ax.AttrValue, ff.URL[0].Attribute)
	assert.Contains(t, pol.Apps, "com.apple.Safari")
	assert.NotEmpty(t, pol.Defaults.Document)
}

func TestLoadPolicyRejectsSchemaViolations(t *testing.T) {
	dir := t.TempDir()

	badTarget := filepath.Join(dir, "bad-target.yaml")
	writeFile(t, badTarget, `
version: 1
defaults:
  url:
    - target: screen
      attribute: AXURL
`)
	_, err := LoadPolicy(badTarget)
	assert.ErrorContains(t, err, "policy schema")

	missingVersion := filepath.Join(dir, "no-version.yaml")
	writeFile(t, missingVersion, `
defaults:
  url:
    - target: window
      attribute: AXURL
`)
	_, err = LoadPolicy(missingVersion)
	assert.Error(t, err)
}

func TestWatchPolicyHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writeFile(t, path, "version: 1\n")

	changed := make(chan *focus.Policy, 1)
	w, err := WatchPolicy(path, func(p *focus.Policy) { changed <- p })
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, `
version: 2
apps:
  com.example.editor:
    document:
      - target: window
        attribute: AXDocument
`)

	select {
	case pol := <-changed:
		assert.Equal(t, 2, pol.Version)
		assert.Contains(t, pol.Apps, "com.example.editor")
	case <-time.After(3 * time.Second):
		t.Fatal("policy reload never fired")
	}
}
