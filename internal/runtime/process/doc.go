// Package process starts supervised commands as local processes.
//
// Every job is started through a reexec of the supervisor binary: the parent
// half of the launch (Launcher.Launch) forks a copy of the current executable
// with the job's process group, session and terminal attributes already
// applied by the kernel, and the child half (ExecJob) replaces that copy with
// the target program. Splitting the launch this way keeps the exec failure
// inside the child, where it becomes an ordinary exit status (126, 127 or 1)
// that the supervisor observes while reaping, instead of an error returned to
// the parent.
//
// Launched processes are never waited on here. The caller owns every pid and is
// expected to reap it with wait4.
//
// Job groups are signalled with SignalGroup, which reports a vanished group as
// ErrGone so callers can treat the race between a job exiting and a signal
// being forwarded as expected.
package process
