package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/Paintersrp/subreap/internal/config"
	"github.com/Paintersrp/subreap/internal/engine"
)

// settings is the validated outcome of merging the configuration file, the
// environment and the command line.
type settings struct {
	commands    []engine.Command
	options     engine.Options
	quiet       int
	logFormat   string
	pidFile     string
	metricsAddr string
}

// commandSeparator splits positional arguments into separate commands.
const commandSeparator = "--"

// splitCommands breaks positional arguments into command vectors at every
// separator. Empty vectors are kept so validation can point at them.
func splitCommands(args []string) [][]string {
	if len(args) == 0 {
		return nil
	}
	var (
		out     [][]string
		current = []string{}
	)
	for _, arg := range args {
		if arg == commandSeparator {
			out = append(out, current)
			current = []string{}
			continue
		}
		current = append(current, arg)
	}
	return append(out, current)
}

// resolveSettings loads the configuration file, if any, and lays the flags
// on top of it. Commands given on the command line replace those in the file.
func resolveSettings(opts *options, args []string) (*settings, error) {
	cfg := &config.Config{}
	if opts.file != "" {
		loaded, err := config.Load(opts.file)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var commands []*config.CommandSpec
	for _, argv := range splitCommands(args) {
		commands = append(commands, &config.CommandSpec{Command: argv})
	}
	for _, line := range opts.commandLines {
		argv, err := config.SplitCommand(line)
		if err != nil {
			return nil, fmt.Errorf("--command: %w", err)
		}
		commands = append(commands, &config.CommandSpec{Command: argv})
	}
	if len(commands) > 0 {
		cfg.Commands = commands
	}

	if opts.changed("signal") {
		cfg.Shutdown.Signal = opts.signal
	}
	if opts.changed("kill-timeout") {
		if opts.killTimeout <= 0 {
			return nil, fmt.Errorf("--kill-timeout: must be a positive number of seconds, got %d", opts.killTimeout)
		}
		cfg.Shutdown.KillTimeout = config.Duration{Duration: time.Duration(opts.killTimeout) * time.Second}
	}
	if opts.changed("error-threshold") {
		cfg.Shutdown.ErrorThreshold = opts.threshold
	}
	if opts.changed("exit-policy") {
		cfg.ExitPolicy = opts.exitPolicy
	}
	if opts.changed("quiet") {
		cfg.Logging.Quiet = opts.quiet
	}
	switch {
	case opts.changed("log-format"):
		cfg.Logging.Format = opts.logFormat
	case os.Getenv(envLogFormat) != "":
		cfg.Logging.Format = os.Getenv(envLogFormat)
	}
	if opts.changed("pidfile") {
		cfg.PidFile = opts.pidFile
	}
	if opts.changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sig, err := config.ParseSignal(cfg.Shutdown.Signal)
	if err != nil {
		return nil, err
	}

	out := &settings{
		options: engine.Options{
			ShutdownSignal: sig,
			KillTimeout:    cfg.Shutdown.KillTimeout.Duration,
			ErrorThreshold: cfg.Shutdown.ErrorThreshold,
			ExitPolicy:     engine.ExitPolicy(cfg.ExitPolicy),
		},
		quiet:       cfg.Logging.Quiet,
		logFormat:   cfg.Logging.Format,
		pidFile:     cfg.PidFile,
		metricsAddr: cfg.MetricsAddr,
	}
	for _, spec := range cfg.Commands {
		out.commands = append(out.commands, engine.Command{
			Name: spec.Name,
			Argv: []string(spec.Command),
			Env:  config.EnvList(spec.Env),
			Dir:  spec.Workdir,
		})
	}
	return out, nil
}
