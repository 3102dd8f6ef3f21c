package engine

import (
	"fmt"

	"github.com/docker/go-units"
	"golang.org/x/sys/unix"
)

// escalate moves the supervisor from armed to terminating. The shutdown
// signal reaches each remaining job group once; later failures and requests
// find the phase already terminating and do not repeat it.
func (s *Supervisor) escalate(reason string) error {
	if s.phase != PhaseArmed {
		return nil
	}
	s.phase = PhaseTerminating

	for _, job := range s.sortedJobs() {
		if !s.signalJob(job, s.opts.ShutdownSignal) {
			continue
		}
		s.emit(Event{
			Type:    EventTypeShutdown,
			Job:     job.Name,
			PID:     job.PID,
			Signal:  s.opts.ShutdownSignal,
			Reason:  reason,
			Message: fmt.Sprintf("sent %s to group %d", signalLabel(s.opts.ShutdownSignal), job.PID),
		})
	}

	if s.opts.KillTimeout <= 0 {
		return nil
	}
	if err := s.kernel.SetAlarm(s.opts.KillTimeout); err != nil {
		return err
	}
	s.alarmArmed = true
	s.emit(Event{
		Type:    EventTypeShutdown,
		Reason:  reason,
		Message: fmt.Sprintf("remaining jobs will be killed in %s", units.HumanDuration(s.opts.KillTimeout)),
	})
	return nil
}

// alarm handles SIGALRM. Only an alarm the supervisor armed itself, and whose
// timer has really run out, turns into a kill broadcast.
func (s *Supervisor) alarm() {
	if s.phase != PhaseTerminating || !s.alarmArmed {
		s.strayAlarm()
		return
	}
	expired, err := s.kernel.AlarmExpired()
	if err == nil && !expired {
		s.strayAlarm()
		return
	}
	s.alarmArmed = false

	for _, job := range s.sortedJobs() {
		if !s.signalJob(job, unix.SIGKILL) {
			continue
		}
		s.emit(Event{
			Type:    EventTypeKill,
			Level:   LevelWarn,
			Job:     job.Name,
			PID:     job.PID,
			Signal:  unix.SIGKILL,
			Reason:  ReasonKillTimeout,
			Message: fmt.Sprintf("kill timeout reached, sent %s to group %d", signalLabel(unix.SIGKILL), job.PID),
		})
	}
}

func (s *Supervisor) strayAlarm() {
	s.emit(Event{
		Type:    EventTypeIgnored,
		Signal:  unix.SIGALRM,
		Reason:  ReasonStrayAlarm,
		Message: "ignored alarm not armed by supervisor",
	})
}
