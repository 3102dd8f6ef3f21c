package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate reports the first problem found in the configuration. Errors carry
// the field path of the offending value.
func (c *Config) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("version: unsupported version %q", c.Version)
	}
	if err := c.validateCommands(); err != nil {
		return err
	}

	if _, err := ParseSignal(c.Shutdown.Signal); err != nil {
		return fmt.Errorf("%s: %w", shutdownField("signal"), err)
	}
	if c.Shutdown.KillTimeout.IsSet() {
		d := c.Shutdown.KillTimeout.Duration
		if d < time.Second || d%time.Second != 0 {
			return fmt.Errorf("%s: must be a whole number of seconds, at least 1s, got %s", shutdownField("killTimeout"), d)
		}
	}
	if c.Shutdown.ErrorThreshold < 0 || c.Shutdown.ErrorThreshold > MaxErrorThreshold {
		return fmt.Errorf("%s: must be between 0 and %d", shutdownField("errorThreshold"), MaxErrorThreshold)
	}

	switch c.ExitPolicy {
	case ExitPolicyJobs, ExitPolicyDescendants:
	default:
		return fmt.Errorf("exitPolicy: must be %q or %q", ExitPolicyJobs, ExitPolicyDescendants)
	}
	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("logging.format: must be %q or %q", LogFormatText, LogFormatJSON)
	}
	if c.Logging.Quiet < 0 {
		return errors.New("logging.quiet: must not be negative")
	}
	return nil
}

func (c *Config) validateCommands() error {
	if len(c.Commands) == 0 {
		return errors.New("commands: at least one command is required")
	}
	if len(c.Commands) > MaxCommands {
		return fmt.Errorf("commands: at most %d commands are supported, got %d", MaxCommands, len(c.Commands))
	}
	seen := make(map[string]int, len(c.Commands))
	for idx, cmd := range c.Commands {
		if cmd == nil {
			return fmt.Errorf("%s: command is null", commandField(idx))
		}
		if len(cmd.Command) == 0 || strings.TrimSpace(cmd.Command[0]) == "" {
			return fmt.Errorf("%s: must not be empty", commandField(idx, "command"))
		}
		if prev, dup := seen[cmd.Name]; dup {
			return fmt.Errorf("%s: duplicate name %q (also used by %s)", commandField(idx, "name"), cmd.Name, commandField(prev))
		}
		seen[cmd.Name] = idx
		for key := range cmd.Env {
			if key == "" || strings.ContainsAny(key, "=\x00") {
				return fmt.Errorf("%s: invalid variable name %q", commandField(idx, "env"), key)
			}
		}
	}
	return nil
}
