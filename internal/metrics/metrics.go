package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	jobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subreap",
		Name:      "jobs_running",
		Help:      "Number of supervised jobs that have not been reaped yet.",
	})

	jobExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subreap",
		Name:      "job_exits_total",
		Help:      "Supervised jobs reaped, by outcome (completed, failed, killed).",
	}, []string{"outcome"})

	jobRuntime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "subreap",
		Name:      "job_runtime_seconds",
		Help:      "Wall-clock lifetime of supervised jobs in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	orphansReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subreap",
		Name:      "orphans_reaped_total",
		Help:      "Re-parented descendants reaped that were not supervised jobs.",
	})

	signalsForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subreap",
		Name:      "signals_forwarded_total",
		Help:      "Signals delivered to job process groups, by signal name.",
	}, []string{"signal"})

	escalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subreap",
		Name:      "escalations_total",
		Help:      "Shutdown escalation broadcasts, by phase (shutdown, kill).",
	}, []string{"phase"})

	exitCode = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subreap",
		Name:      "exit_code",
		Help:      "Aggregate exit code the supervisor will report.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "subreap",
		Name:      "build_info",
		Help:      "Build metadata for the running subreap binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(jobsRunning, jobExits, jobRuntime, orphansReaped, signalsForwarded, escalations, exitCode, buildInfo)
}

// Registry returns the Prometheus registry containing all subreap metrics.
func Registry() *prometheus.Registry {
	return registry
}

// JobStarted records a launched job.
func JobStarted() {
	jobsRunning.Inc()
}

// JobExited records a reaped job and how long it ran.
func JobExited(outcome string, lifetime time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	jobsRunning.Dec()
	jobExits.WithLabelValues(outcome).Inc()
	if lifetime > 0 {
		jobRuntime.Observe(lifetime.Seconds())
	}
}

// OrphanReaped counts a reaped descendant that was not a job.
func OrphanReaped() {
	orphansReaped.Inc()
}

// SignalForwarded counts one delivery of signal to a job group.
func SignalForwarded(signal string) {
	if signal == "" {
		return
	}
	signalsForwarded.WithLabelValues(signal).Inc()
}

// Escalated counts one escalation broadcast.
func Escalated(phase string) {
	escalations.WithLabelValues(phase).Inc()
}

// SetExitCode publishes the aggregate exit code.
func SetExitCode(code int) {
	exitCode.Set(float64(code))
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
