package process

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"

	"github.com/docker/docker/pkg/reexec"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/Paintersrp/subreap/internal/logfmt"
)

// Exit statuses used by a job whose program could not be executed. They follow
// the POSIX shell conventions.
const (
	ExitExecFailed    = 1
	ExitCannotExecute = 126
	ExitNotFound      = 127
)

const execEntrypoint = "subreap-exec"

// Environment the launcher hands to the trampoline for its own diagnostics.
const (
	envExecLogFormat = "SUBREAP_EXEC_LOG_FORMAT"
	envExecRunID     = "SUBREAP_EXEC_RUN"
)

func init() {
	reexec.Register(execEntrypoint, ExecJob)
}

// ExecJob is the child half of a launch. It replaces the current process image
// with the program named by os.Args[1:] and only comes back by exiting.
func ExecJob() {
	log := execLogger()
	argv := os.Args[1:]
	if len(argv) == 0 {
		log.Error("exec: missing command")
		os.Exit(ExitExecFailed)
	}

	err := execProgram(argv)
	log.WithField("cmd", argv[0]).WithError(err).Error("exec failed")
	os.Exit(ExecFailureCode(err))
}

// execLogger sets up the standard logger with the format and run id the
// launcher passed down, then drops them from the environment so the program
// never sees them.
func execLogger() logrus.FieldLogger {
	format := os.Getenv(envExecLogFormat)
	runID := os.Getenv(envExecRunID)
	_ = os.Unsetenv(envExecLogFormat)
	_ = os.Unsetenv(envExecRunID)

	logger := logrus.StandardLogger()
	if formatter, err := logfmt.Formatter(format); err == nil {
		logger.SetFormatter(formatter)
	}
	if runID == "" {
		return logger
	}
	return logger.WithField("run", runID)
}

func execProgram(argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil && !errors.Is(err, exec.ErrDot) {
		return err
	}
	return unix.Exec(path, argv, os.Environ())
}

// ExecFailureCode maps a lookup or exec error to the exit status reported by
// the child.
func ExecFailureCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, exec.ErrNotFound),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, unix.ENOENT),
		errors.Is(err, unix.ENOTDIR):
		return ExitNotFound
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, unix.EACCES),
		errors.Is(err, unix.EPERM),
		errors.Is(err, unix.ENOEXEC),
		errors.Is(err, unix.EISDIR):
		return ExitCannotExecute
	default:
		return ExitExecFailed
	}
}
