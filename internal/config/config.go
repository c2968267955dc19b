// Package config handles configuration loading, validation, and hot
// reload for focusd.
//
// Two files are involved: the daemon config (TOML) and the probe policy
// (YAML, schema-validated). Both can be reloaded while the daemon runs;
// a bad on-disk version never replaces a good in-memory one.
package config

import (
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Tracker configuration for the reconciliation engine.
	Tracker TrackerConfig `toml:"tracker" json:"tracker" yaml:"tracker"`

	// Observer configuration for notification plumbing.
	Observer ObserverConfig `toml:"observer" json:"observer" yaml:"observer"`

	// Clipboard change detection configuration.
	Clipboard ClipboardConfig `toml:"clipboard" json:"clipboard" yaml:"clipboard"`

	// Probes configuration for app-specific attribute resolution.
	Probes ProbesConfig `toml:"probes" json:"probes" yaml:"probes"`

	// Output configuration for the event stream.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Trust configuration for the accessibility permission gate.
	Trust TrustConfig `toml:"trust" json:"trust" yaml:"trust"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// TrackerConfig holds reconciliation engine configuration.
type TrackerConfig struct {
	// NetEnrichment attaches open TCP connections of the activated
	// process to transition records.
	NetEnrichment bool `toml:"net_enrichment" json:"net_enrichment" yaml:"net_enrichment"`

	// MaxConnections caps the sockets listed per transition.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	// MaxTreeDepth bounds accessibility tree descent.
	MaxTreeDepth int `toml:"max_tree_depth" json:"max_tree_depth" yaml:"max_tree_depth"`

	// MaxChildren bounds per-node fan-out during descent.
	MaxChildren int `toml:"max_children" json:"max_children" yaml:"max_children"`
}

// ObserverConfig holds notification plumbing configuration.
type ObserverConfig struct {
	// ActivationPollMs is the workspace poll interval in milliseconds.
	ActivationPollMs int `toml:"activation_poll_ms" json:"activation_poll_ms" yaml:"activation_poll_ms"`

	// QueueSize is the capacity of the callback event queue. Events
	// beyond capacity are dropped, never blocked on.
	QueueSize int `toml:"queue_size" json:"queue_size" yaml:"queue_size"`
}

// ClipboardConfig holds clipboard detection configuration.
type ClipboardConfig struct {
	// Enabled turns clipboard change detection on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// PollIntervalMs is how often the change counter is sampled.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// ProbesConfig holds probe policy configuration.
type ProbesConfig struct {
	// PolicyPath points at a YAML probe policy file. Empty means the
	// built-in defaults.
	PolicyPath string `toml:"policy_path" json:"policy_path" yaml:"policy_path"`

	// HotReload re-applies the policy file when it changes on disk.
	HotReload bool `toml:"hot_reload" json:"hot_reload" yaml:"hot_reload"`
}

// OutputConfig holds event stream configuration.
type OutputConfig struct {
	// Format is "json" or "text".
	Format string `toml:"format" json:"format" yaml:"format"`

	// StorePath is an optional SQLite archive for emitted events.
	StorePath string `toml:"store_path" json:"store_path" yaml:"store_path"`
}

// TrustConfig holds accessibility permission configuration.
type TrustConfig struct {
	// Prompt shows the system permission dialog when untrusted.
	Prompt bool `toml:"prompt" json:"prompt" yaml:"prompt"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath overrides the default log file location.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// ActivationPoll returns the workspace poll interval as a duration.
func (c *Config) ActivationPoll() time.Duration {
	return time.Duration(c.Observer.ActivationPollMs) * time.Millisecond
}

// ClipboardPoll returns the clipboard sampling interval as a duration.
func (c *Config) ClipboardPoll() time.Duration {
	return time.Duration(c.Clipboard.PollIntervalMs) * time.Millisecond
}
