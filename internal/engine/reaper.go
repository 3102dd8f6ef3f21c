package engine

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/subreap/internal/runtime/process"
)

// ExitStatus classifies a wait status the way shells do: the exit code for a
// normal exit and 128 plus the signal number for a signal death. ok is false
// for statuses that do not describe a terminated process.
func ExitStatus(ws unix.WaitStatus) (status int, ok bool) {
	switch {
	case ws.Exited():
		return ws.ExitStatus(), true
	case ws.Signaled():
		return 128 + int(ws.Signal()), true
	default:
		return 0, false
	}
}

// reap drains every terminated child. It reports done once the exit policy is
// met, and only starts escalation after the whole batch has been collected.
func (s *Supervisor) reap() (int, bool, error) {
	notify := false

scan:
	for {
		var ws unix.WaitStatus
		pid, err := s.kernel.Wait(&ws)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			break scan
		case errors.Is(err, unix.ECHILD):
			return s.finish(ReasonNoChildren), true, nil
		case err != nil:
			return ExitFatal, false, fmt.Errorf("wait for children: %w", err)
		case pid <= 0:
			break scan
		}
		if s.collect(pid, ws) {
			notify = true
		}
	}

	if len(s.jobs) == 0 && s.opts.ExitPolicy == ExitWhenJobsDone {
		return s.finish(ReasonJobsDone), true, nil
	}
	if notify && s.opts.ShutdownSignal != 0 && s.phase == PhaseArmed {
		if err := s.escalate(ReasonJobFailure); err != nil {
			return ExitFatal, false, err
		}
	}
	return 0, false, nil
}

// collect records one terminated child and reports whether it is a job whose
// failure should start escalation. Orphans never affect the exit code.
func (s *Supervisor) collect(pid int, ws unix.WaitStatus) bool {
	status, ok := ExitStatus(ws)
	if !ok {
		return false
	}

	job, tracked := s.jobs[pid]
	if !tracked {
		s.emit(Event{
			Type:    EventTypeOrphan,
			PID:     pid,
			Status:  status,
			Message: fmt.Sprintf("pid %d: reaped orphan with status %d", pid, status),
		})
		return false
	}
	delete(s.jobs, pid)
	if s.ttyOwner == pid {
		s.reclaim(job)
	}

	evt := Event{Type: EventTypeExited, Job: job.Name, PID: pid, Status: status, Elapsed: s.now().Sub(job.StartedAt)}
	switch {
	case ws.Signaled():
		evt.Reason = ReasonKilled
		evt.Signal = ws.Signal()
		evt.Level = LevelWarn
		evt.Message = fmt.Sprintf("pid %d: killed by %s", pid, signalLabel(ws.Signal()))
	case status == 0:
		evt.Reason = ReasonCompleted
		evt.Message = fmt.Sprintf("pid %d: completed", pid)
	default:
		evt.Reason = ReasonFailed
		evt.Level = LevelWarn
		evt.Message = fmt.Sprintf("pid %d: failed with code %d", pid, status)
	}
	s.emit(evt)

	if status != 0 && !s.exitSet {
		s.exitCode = status
		s.exitSet = true
	}
	return status != 0 && status >= s.opts.ErrorThreshold
}

func isGone(err error) bool {
	return errors.Is(err, process.ErrGone) || errors.Is(err, unix.ESRCH)
}

func signalLabel(sig unix.Signal) string {
	name := unix.SignalName(sig)
	if name == "" {
		return fmt.Sprintf("signal %d", int(sig))
	}
	return fmt.Sprintf("%s (%d)", name, int(sig))
}
