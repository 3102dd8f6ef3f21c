package engine

import "time"

// Snapshot is a point-in-time copy of supervisor state, safe to read from any
// goroutine.
type Snapshot struct {
	GeneratedAt time.Time
	// Started is set once every job has been launched.
	Started  bool
	Phase    Phase
	ExitCode int
	Jobs     []JobInfo
}

// JobInfo describes one running job.
type JobInfo struct {
	Name       string
	PID        int
	Command    []string
	StartedAt  time.Time
	Foreground bool
}

// Snapshot returns the most recently published state.
func (s *Supervisor) Snapshot() Snapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

func (s *Supervisor) publish() {
	snap := &Snapshot{
		GeneratedAt: s.now(),
		Started:     s.started,
		Phase:       s.phase,
		ExitCode:    s.exitCode,
		Jobs:        make([]JobInfo, 0, len(s.jobs)),
	}
	for _, job := range s.sortedJobs() {
		snap.Jobs = append(snap.Jobs, JobInfo{
			Name:       job.Name,
			PID:        job.PID,
			Command:    append([]string(nil), job.Argv...),
			StartedAt:  job.StartedAt,
			Foreground: job.Foreground,
		})
	}
	s.snapshot.Store(snap)
}
