package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Tracker: TrackerConfig{
			NetEnrichment:  false,
			MaxConnections: 8,
			MaxTreeDepth:   20,
			MaxChildren:    100,
		},
		Observer: ObserverConfig{
			ActivationPollMs: 200,
			QueueSize:        64,
		},
		Clipboard: ClipboardConfig{
			Enabled:        true,
			PollIntervalMs: 500,
		},
		Probes: ProbesConfig{
			HotReload: true,
		},
		Output: OutputConfig{
			Format: "json",
		},
		Trust: TrustConfig{
			Prompt: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DefaultPath returns the platform-specific default config file path.
func DefaultPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "focusd", "config.toml")
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, _ := os.UserHomeDir()
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "focusd", "config.toml")
	}
}

// ApplyEnvOverrides applies FOCUSD_* environment variables on top of the
// loaded file. Only operational knobs are overridable this way.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FOCUSD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FOCUSD_OUTPUT_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("FOCUSD_STORE_PATH"); v != "" {
		c.Output.StorePath = v
	}
	if v := os.Getenv("FOCUSD_POLICY_PATH"); v != "" {
		c.Probes.PolicyPath = v
	}
}
