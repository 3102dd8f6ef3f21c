package process

import (
	"fmt"
	"os"

	"github.com/docker/docker/pkg/reexec"

	"github.com/Paintersrp/subreap/internal/runtime"
)

type launcherImpl struct {
	stdin  *os.File
	stdout *os.File
	stderr *os.File

	logFormat string
	runID     string
}

// Option customises a launcher.
type Option func(*launcherImpl)

// WithLogging makes the exec trampoline report failures in the supervisor's
// log format, tagged with its run id.
func WithLogging(format, runID string) Option {
	return func(l *launcherImpl) {
		l.logFormat = format
		l.runID = runID
	}
}

// New constructs a launcher whose jobs inherit the supervisor's standard
// streams.
func New(opts ...Option) runtime.Launcher {
	return NewWithStdio(os.Stdin, os.Stdout, os.Stderr, opts...)
}

// NewWithStdio constructs a launcher that wires the provided files to the jobs'
// standard streams. Nil files are connected to the null device.
func NewWithStdio(stdin, stdout, stderr *os.File, opts ...Option) runtime.Launcher {
	l := &launcherImpl{stdin: stdin, stdout: stdout, stderr: stderr}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *launcherImpl) Launch(spec runtime.Spec) (runtime.Spawned, error) {
	if len(spec.Argv) == 0 {
		return runtime.Spawned{}, fmt.Errorf("job %s requires a command", spec.Name)
	}

	args := make([]string, 0, len(spec.Argv)+1)
	args = append(args, execEntrypoint)
	args = append(args, spec.Argv...)

	cmd := reexec.Command(args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	if l.logFormat != "" {
		cmd.Env = append(cmd.Env, envExecLogFormat+"="+l.logFormat)
	}
	if l.runID != "" {
		cmd.Env = append(cmd.Env, envExecRunID+"="+l.runID)
	}
	// Assign only non-nil files: a typed nil *os.File in an io.Reader would
	// not be treated as "no stream" by os/exec.
	if l.stdin != nil {
		cmd.Stdin = l.stdin
	}
	if l.stdout != nil {
		cmd.Stdout = l.stdout
	}
	if l.stderr != nil {
		cmd.Stderr = l.stderr
	}

	configureCmdSysProcAttr(cmd, spec)

	if err := cmd.Start(); err != nil {
		return runtime.Spawned{}, fmt.Errorf("start job %s: %w: %w", spec.Name, runtime.ErrForkFailed, err)
	}

	pid := cmd.Process.Pid
	// The supervisor reaps with wait4; drop the os.Process handle so it does
	// not hold a pidfd for a child it will never Wait on.
	_ = cmd.Process.Release()

	return runtime.Spawned{PID: pid}, nil
}
