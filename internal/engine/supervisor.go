// Package engine runs the supervisor: it launches the configured jobs, routes
// every signal delivered to the process, reaps terminated children and drives
// the shutdown escalation when a job fails.
package engine

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/subreap/internal/runtime"
)

// ExitFatal is returned by Run when supervision cannot continue safely.
const ExitFatal = 1

// ErrSignalsClosed is reported when the signal channel is closed underneath
// the dispatch loop.
var ErrSignalsClosed = errors.New("signal channel closed")

// ExitPolicy decides when the supervisor stops reaping and exits.
type ExitPolicy string

const (
	// ExitWhenJobsDone exits once every launched job has been reaped.
	ExitWhenJobsDone ExitPolicy = "jobs"
	// ExitWhenNoDescendants keeps reaping re-parented orphans until the
	// process has no children left at all.
	ExitWhenNoDescendants ExitPolicy = "descendants"
)

// Options tunes supervision behaviour.
type Options struct {
	// ShutdownSignal is broadcast to every job group once a job fails. Zero
	// disables escalation.
	ShutdownSignal unix.Signal
	// KillTimeout, when positive, is how long after the shutdown broadcast
	// the remaining groups are sent SIGKILL.
	KillTimeout time.Duration
	// ErrorThreshold is the smallest non-zero status that counts as failure
	// for escalation. Zero means any non-zero status.
	ErrorThreshold int
	ExitPolicy     ExitPolicy
	// ParentDeath asks the kernel to kill jobs if the supervisor dies.
	ParentDeath bool
}

// Command describes one job to launch.
type Command struct {
	Name string
	Argv []string
	Env  []string
	Dir  string
}

// Terminal hands the controlling terminal to a job and takes it back.
type Terminal interface {
	Handover(pgid int) error
	Reclaim() error
}

// Config wires a Supervisor to its collaborators.
type Config struct {
	Options  Options
	Kernel   Kernel
	Launcher runtime.Launcher
	// Signals is the channel returned by Gate.
	Signals <-chan os.Signal
	// Terminal is optional; it is only used when exactly one job runs.
	Terminal Terminal
	Events   Sink
}

// Phase is the escalation state.
type Phase string

const (
	PhaseArmed       Phase = "armed"
	PhaseTerminating Phase = "terminating"
)

// Job is a launched command. Every job leads its own process group, so PGID
// always equals PID.
type Job struct {
	Name       string
	PID        int
	PGID       int
	Argv       []string
	StartedAt  time.Time
	Foreground bool
}

// Supervisor owns the job set. Apart from Snapshot, its methods must be called
// from a single goroutine.
type Supervisor struct {
	opts     Options
	kernel   Kernel
	launcher runtime.Launcher
	signals  <-chan os.Signal
	terminal Terminal
	sink     Sink
	now      func() time.Time

	jobs     map[int]*Job
	ttyOwner int
	started  bool

	exitCode int
	exitSet  bool

	phase      Phase
	alarmArmed bool

	snapshot atomic.Pointer[Snapshot]
}

// New validates cfg and returns an idle Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Kernel == nil {
		return nil, errors.New("kernel is required")
	}
	if cfg.Launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if cfg.Signals == nil {
		return nil, errors.New("signal channel is required")
	}
	opts := cfg.Options
	if opts.ExitPolicy == "" {
		opts.ExitPolicy = ExitWhenJobsDone
	}
	if opts.ExitPolicy != ExitWhenJobsDone && opts.ExitPolicy != ExitWhenNoDescendants {
		return nil, fmt.Errorf("unknown exit policy %q", opts.ExitPolicy)
	}
	if opts.ErrorThreshold < 0 || opts.ErrorThreshold > 255 {
		return nil, fmt.Errorf("error threshold %d out of range 0-255", opts.ErrorThreshold)
	}
	if opts.KillTimeout < 0 {
		return nil, fmt.Errorf("kill timeout %s is negative", opts.KillTimeout)
	}

	s := &Supervisor{
		opts:     opts,
		kernel:   cfg.Kernel,
		launcher: cfg.Launcher,
		signals:  cfg.Signals,
		terminal: cfg.Terminal,
		sink:     cfg.Events,
		now:      time.Now,
		jobs:     make(map[int]*Job),
		phase:    PhaseArmed,
	}
	s.publish()
	return s, nil
}

// Start launches every command in order. The terminal is only handed over when
// a single command is supervised. A launch failure is fatal; groups already
// started are killed before the error is returned.
func (s *Supervisor) Start(commands []Command) error {
	if len(commands) == 0 {
		return errors.New("no commands to supervise")
	}
	interactive := len(commands) == 1 && s.terminal != nil

	for _, cmd := range commands {
		spec := runtime.Spec{
			Name:        cmd.Name,
			Argv:        cmd.Argv,
			Env:         cmd.Env,
			Dir:         cmd.Dir,
			Foreground:  interactive,
			ParentDeath: s.opts.ParentDeath,
		}
		spawned, err := s.launcher.Launch(spec)
		if err != nil {
			for _, job := range s.sortedJobs() {
				s.signalJob(job, unix.SIGKILL)
			}
			return err
		}

		job := &Job{
			Name:       cmd.Name,
			PID:        spawned.PID,
			PGID:       spawned.PID,
			Argv:       append([]string(nil), cmd.Argv...),
			StartedAt:  s.now(),
			Foreground: interactive,
		}
		s.jobs[job.PID] = job
		s.emit(Event{
			Type:    EventTypeStarted,
			Job:     job.Name,
			PID:     job.PID,
			Message: fmt.Sprintf("started process `%s` (pid %d)", strings.Join(job.Argv, " "), job.PID),
		})

		if interactive {
			s.handover(job)
		}
	}
	s.started = true
	s.publish()
	return nil
}

// Run is the dispatch loop. It blocks on the signal channel and returns the
// aggregate exit code once the exit policy is satisfied. A non-nil error means
// supervision failed and the code is ExitFatal.
func (s *Supervisor) Run() (int, error) {
	if len(s.jobs) == 0 && s.opts.ExitPolicy == ExitWhenJobsDone {
		return s.finish(ReasonJobsDone), nil
	}
	for {
		sig, ok := <-s.signals
		if !ok {
			return ExitFatal, ErrSignalsClosed
		}
		code, done, err := s.dispatch(sig)
		if err == nil && !done && sig != unix.SIGCHLD && len(s.jobs) == 0 {
			// Only orphans remain; their SIGCHLD may have been dropped while
			// the gate buffer was full.
			code, done, err = s.reap()
		}
		s.publish()
		if err != nil {
			return ExitFatal, err
		}
		if done {
			return code, nil
		}
	}
}

func (s *Supervisor) dispatch(sig os.Signal) (int, bool, error) {
	num, ok := sig.(unix.Signal)
	if !ok {
		return 0, false, nil
	}

	switch num {
	case unix.SIGCHLD:
		return s.reap()
	case unix.SIGALRM:
		s.alarm()
	case unix.SIGTTIN, unix.SIGTTOU, unix.SIGTSTP, unix.SIGPIPE:
		s.emit(Event{
			Type:    EventTypeIgnored,
			Signal:  num,
			Reason:  ReasonTerminalSignal,
			Message: fmt.Sprintf("ignored signal %s", signalLabel(num)),
		})
	case powerFailSignal:
		s.forward(unix.SIGTERM, ReasonPowerFailure)
	default:
		if num == s.opts.ShutdownSignal && s.phase == PhaseArmed {
			return 0, false, s.escalate(ReasonShutdownRequest)
		}
		s.forward(num, "")
	}
	return 0, false, nil
}

func (s *Supervisor) forward(sig unix.Signal, reason string) {
	for _, job := range s.sortedJobs() {
		if !s.signalJob(job, sig) {
			continue
		}
		s.emit(Event{
			Type:    EventTypeForwarded,
			Job:     job.Name,
			PID:     job.PID,
			Signal:  sig,
			Reason:  reason,
			Message: fmt.Sprintf("signal %s forwarded to group %d", signalLabel(sig), job.PID),
		})
	}
}

// signalJob reports whether sig was delivered. A group that already vanished is
// skipped silently; its exit is picked up by the next reap.
func (s *Supervisor) signalJob(job *Job, sig unix.Signal) bool {
	err := s.kernel.SignalGroup(job.PGID, sig)
	if err == nil {
		return true
	}
	if !isGone(err) {
		s.emit(Event{
			Type:    EventTypeWarning,
			Level:   LevelWarn,
			Job:     job.Name,
			PID:     job.PID,
			Signal:  sig,
			Reason:  ReasonForwardFailed,
			Message: fmt.Sprintf("cannot send %s to group %d", signalLabel(sig), job.PID),
			Err:     err,
		})
	}
	return false
}

// handover confirms the job's group as the terminal's foreground group. The
// launch already asked the kernel for it, so the job owns the terminal even if
// this call fails, and the terminal is reclaimed when the job is reaped.
func (s *Supervisor) handover(job *Job) {
	s.ttyOwner = job.PID
	if err := s.terminal.Handover(job.PGID); err != nil {
		s.emit(Event{
			Type:    EventTypeWarning,
			Level:   LevelWarn,
			Job:     job.Name,
			PID:     job.PID,
			Reason:  ReasonTerminalHandover,
			Message: "cannot hand terminal to job",
			Err:     err,
		})
	}
}

func (s *Supervisor) reclaim(job *Job) {
	s.ttyOwner = 0
	if err := s.terminal.Reclaim(); err != nil {
		s.emit(Event{
			Type:    EventTypeWarning,
			Level:   LevelWarn,
			Job:     job.Name,
			PID:     job.PID,
			Reason:  ReasonTerminalReclaim,
			Message: "cannot reclaim terminal",
			Err:     err,
		})
	}
}

func (s *Supervisor) finish(reason string) int {
	s.emit(Event{
		Type:    EventTypeStopped,
		Status:  s.exitCode,
		Reason:  reason,
		Message: fmt.Sprintf("exit code %d", s.exitCode),
	})
	return s.exitCode
}

func (s *Supervisor) sortedJobs() []*Job {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].PID < jobs[j].PID })
	return jobs
}
