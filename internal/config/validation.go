package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for consistency. Unset numeric
// fields are filled from defaults rather than rejected.
func (c *Config) Validate() error {
	var errs []error

	if c.Version <= 0 {
		c.Version = Version
	}
	if c.Version > Version {
		errs = append(errs, fmt.Errorf("config version %d newer than supported %d", c.Version, Version))
	}

	def := DefaultConfig()

	if c.Tracker.MaxConnections <= 0 {
		c.Tracker.MaxConnections = def.Tracker.MaxConnections
	}
	if c.Tracker.MaxTreeDepth <= 0 {
		c.Tracker.MaxTreeDepth = def.Tracker.MaxTreeDepth
	}
	if c.Tracker.MaxChildren <= 0 {
		c.Tracker.MaxChildren = def.Tracker.MaxChildren
	}

	if c.Observer.ActivationPollMs <= 0 {
		c.Observer.ActivationPollMs = def.Observer.ActivationPollMs
	}
	if c.Observer.ActivationPollMs < 50 {
		errs = append(errs, fmt.Errorf("observer.activation_poll_ms %d below minimum 50", c.Observer.ActivationPollMs))
	}
	if c.Observer.QueueSize <= 0 {
		c.Observer.QueueSize = def.Observer.QueueSize
	}

	if c.Clipboard.PollIntervalMs <= 0 {
		c.Clipboard.PollIntervalMs = def.Clipboard.PollIntervalMs
	}
	if c.Clipboard.PollIntervalMs < 100 {
		errs = append(errs, fmt.Errorf("clipboard.poll_interval_ms %d below minimum 100", c.Clipboard.PollIntervalMs))
	}

	switch c.Output.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("output.format %q: must be json or text", c.Output.Format))
	}
	if c.Output.Format == "" {
		c.Output.Format = def.Output.Format
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q: unknown level", c.Logging.Level))
	}
	switch c.Logging.Output {
	case "", "stderr", "file", "both":
	default:
		errs = append(errs, fmt.Errorf("logging.output %q: must be stderr, file, or both", c.Logging.Output))
	}
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		// Default path is filled in by the logging package.
	}

	return errors.Join(errs...)
}
