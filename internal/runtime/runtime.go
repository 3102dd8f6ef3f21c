package runtime

import "errors"

// ErrForkFailed marks a launch that never produced a child process. The
// supervisor treats it as fatal.
var ErrForkFailed = errors.New("fork failed")

// Spec describes a single supervised command ready to be started. The argument
// vector is already tokenized and validated.
type Spec struct {
	Name string
	Argv []string
	// Env lists KEY=VALUE pairs appended to the supervisor's environment.
	Env []string
	Dir string

	// Foreground hands the controlling terminal on stdin to the new
	// process group before the command runs.
	Foreground bool
	// ParentDeath delivers SIGKILL to the job if the supervisor dies.
	ParentDeath bool
}

// Spawned is the parent's view of a successful launch. The process is the
// leader of its own process group, so PID doubles as the group id.
type Spawned struct {
	PID int
}

// Launcher starts supervised commands. Implementations never wait on the
// children they create; the caller reaps them.
type Launcher interface {
	Launch(spec Spec) (Spawned, error)
}
