package engine

import (
	"time"

	"golang.org/x/sys/unix"
)

// EventType captures the notifications emitted by the supervisor while it
// launches, reaps and signals jobs.
type EventType string

const (
	EventTypeStarted   EventType = "started"
	EventTypeExited    EventType = "exited"
	EventTypeOrphan    EventType = "orphan"
	EventTypeForwarded EventType = "forwarded"
	EventTypeIgnored   EventType = "ignored"
	EventTypeShutdown  EventType = "shutdown"
	EventTypeKill      EventType = "kill"
	EventTypeWarning   EventType = "warning"
	EventTypeStopped   EventType = "stopped"
)

// Event represents a single supervisor notification. Job and PID are empty for
// events that do not concern one process.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Job       string
	PID       int
	Signal    unix.Signal
	Status    int
	// Elapsed is how long a reaped job ran.
	Elapsed time.Duration
	Level   string
	Message string
	Reason  string
	Err     error
}

const (
	ReasonCompleted        = "completed"
	ReasonFailed           = "failed"
	ReasonKilled           = "killed"
	ReasonJobFailure       = "job_failure"
	ReasonShutdownRequest  = "shutdown_request"
	ReasonKillTimeout      = "kill_timeout"
	ReasonPowerFailure     = "power_failure"
	ReasonTerminalSignal   = "terminal_signal"
	ReasonStrayAlarm       = "stray_alarm"
	ReasonForwardFailed    = "forward_failed"
	ReasonTerminalHandover = "terminal_handover"
	ReasonTerminalReclaim  = "terminal_reclaim"
	ReasonJobsDone         = "jobs_done"
	ReasonNoChildren       = "no_children"
)

// Levels attached to events; they match the logger's level names.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Sink receives events synchronously on the supervisor's goroutine. It must not
// block.
type Sink func(Event)

func (s *Supervisor) emit(evt Event) {
	if s.sink == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	if evt.Level == "" {
		evt.Level = LevelInfo
	}
	s.sink(evt)
}
