package cli

import (
	stdcontext "context"
	"time"

	"github.com/docker/go-units"

	"github.com/Paintersrp/subreap/internal/api"
	"github.com/Paintersrp/subreap/internal/engine"
)

type snapshotter interface {
	Snapshot() engine.Snapshot
}

// statusController serves the status endpoint from the supervisor's published
// snapshot. It never touches supervisor state directly.
type statusController struct {
	sup   snapshotter
	runID string
	pid   int
	now   func() time.Time
}

func (c *statusController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := c.sup.Snapshot()
	if !snap.Started {
		return nil, api.ErrNotStarted
	}
	now := c.now()

	report := &api.StatusReport{
		RunID:       c.runID,
		Version:     buildVersion(),
		PID:         c.pid,
		GeneratedAt: snap.GeneratedAt,
		Phase:       string(snap.Phase),
		ExitCode:    snap.ExitCode,
		Jobs:        make([]api.JobReport, 0, len(snap.Jobs)),
	}
	for _, job := range snap.Jobs {
		report.Jobs = append(report.Jobs, api.JobReport{
			Name:       job.Name,
			PID:        job.PID,
			Command:    job.Command,
			StartedAt:  job.StartedAt,
			Uptime:     units.HumanDuration(now.Sub(job.StartedAt)),
			Foreground: job.Foreground,
		})
	}
	return report, nil
}
