package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Environment variables consulted for defaults.
const (
	envConfig    = "SUBREAP_CONFIG"
	envLogFormat = "SUBREAP_LOG_FORMAT"
)

var errNoCommand = errors.New("no command given; see subreap --help")

// ExitError carries the process exit code out of a command. A nil Err means
// the code is the normal outcome of supervision and nothing extra is printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// options holds the raw flag values of the root command.
type options struct {
	file         string
	quiet        int
	signal       string
	killTimeout  int
	threshold    int
	commandLines []string
	logFormat    string
	exitPolicy   string
	pidFile      string
	metricsAddr  string
	changedFlags map[string]bool
}

func (o *options) changed(name string) bool {
	return o.changedFlags[name]
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "subreap [flags] [--] command [args...] [-- command [args...]]...",
		Short: "Minimal init process: run commands, reap zombies, forward signals",
		Long: `subreap starts one or more commands, forwards the signals it receives to
their process groups and reaps every process that is re-parented to it. It
exits with the status of the first command that failed, or 0.

Commands are separated by "--". When a failing command should stop the others,
set a shutdown signal with -s and optionally a kill timeout with -t.`,
		Args:                  cobra.ArbitraryArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.changedFlags = map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				opts.changedFlags[f.Name] = true
			})
			if len(args) == 0 && len(opts.commandLines) == 0 && opts.file == "" {
				return errNoCommand
			}
			return runSupervisor(cmd, opts, args)
		},
	}

	flags := root.Flags()
	flags.SetInterspersed(false)
	flags.CountVarP(&opts.quiet, "quiet", "q", "log less; repeat to only log errors")
	flags.StringVarP(&opts.signal, "signal", "s", "", "signal sent to all commands once one fails (INT, TERM, KILL, QUIT, HUP, USR1, USR2)")
	flags.IntVarP(&opts.killTimeout, "kill-timeout", "t", 0, "seconds to wait after the shutdown signal before sending KILL")
	flags.IntVarP(&opts.threshold, "error-threshold", "e", 0, "lowest exit status treated as failure (0 means any non-zero status)")
	flags.StringArrayVarP(&opts.commandLines, "command", "c", nil, "command line to run, split with shell quoting rules (repeatable)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log output format (text or json)")
	flags.StringVar(&opts.exitPolicy, "exit-policy", "", "when to exit: after all commands (jobs) or after all descendants (descendants)")
	flags.StringVar(&opts.pidFile, "pidfile", "", "write and lock the supervisor pid in this file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /api/v1/status on this address")

	root.PersistentFlags().StringVarP(&opts.file, "file", "f", os.Getenv(envConfig), "path to a subreap.yaml configuration file")

	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint.
func Execute() {
	root := NewRootCmd()

	err := root.Execute()
	if err == nil {
		os.Exit(0)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
