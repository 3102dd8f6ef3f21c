package api

import (
	stdcontext "context"
	"errors"
	"time"
)

// ErrNotStarted is returned while the supervisor has not launched its jobs.
var ErrNotStarted = errors.New("supervisor not started")

// JobReport describes a running job.
type JobReport struct {
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	Command    []string  `json:"command"`
	StartedAt  time.Time `json:"started_at"`
	Uptime     string    `json:"uptime"`
	Foreground bool      `json:"foreground"`
}

// StatusReport aggregates supervisor state.
type StatusReport struct {
	RunID       string      `json:"run_id"`
	Version     string      `json:"version"`
	PID         int         `json:"pid"`
	GeneratedAt time.Time   `json:"generated_at"`
	Phase       string      `json:"phase"`
	ExitCode    int         `json:"exit_code"`
	Jobs        []JobReport `json:"jobs"`
}

// Controller exposes supervisor state to control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
}
