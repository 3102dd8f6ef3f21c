package cli

import (
	stdcontext "context"
	"errors"
	"os"
	goruntime "runtime"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	httpapi "github.com/Paintersrp/subreap/internal/api/http"
	"github.com/Paintersrp/subreap/internal/cliutil"
	"github.com/Paintersrp/subreap/internal/engine"
	"github.com/Paintersrp/subreap/internal/metrics"
	"github.com/Paintersrp/subreap/internal/pidfile"
	"github.com/Paintersrp/subreap/internal/runtime/process"
	"github.com/Paintersrp/subreap/internal/tty"
)

func runSupervisor(cmd *cobra.Command, opts *options, args []string) error {
	if err := cliutil.CheckStderr(int(os.Stderr.Fd())); err != nil {
		return &ExitError{Code: cliutil.ExitStderrUnusable}
	}

	set, err := resolveSettings(opts, args)
	if err != nil {
		return err
	}

	logger, err := cliutil.NewLogger(cmd.ErrOrStderr(), set.quiet, set.logFormat)
	if err != nil {
		return err
	}
	runID := xid.New().String()
	log := logger.WithField("run", runID)

	if set.pidFile != "" {
		pf, err := pidfile.Acquire(set.pidFile, os.Getpid())
		if err != nil {
			return err
		}
		log.WithField("path", pf.Path()).Debug("pidfile acquired")
		defer func() {
			if err := pf.Release(); err != nil {
				log.WithError(err).WithField("path", pf.Path()).Warn("release pidfile")
			}
		}()
	}

	signals, stop, err := engine.Gate()
	if err != nil {
		return err
	}
	defer stop()

	kernel, err := engine.NewKernel()
	if err != nil {
		return err
	}

	cfg := engine.Config{
		Options:  set.options,
		Kernel:   kernel,
		Launcher: process.New(process.WithLogging(set.logFormat, runID)),
		Signals:  signals,
		Events:   eventSink(log),
	}
	cfg.Options.ParentDeath = os.Getpid() == 1
	if len(set.commands) == 1 {
		if arbiter := tty.Detect(int(os.Stdin.Fd())); arbiter != nil {
			cfg.Terminal = arbiter
		}
	}

	sup, err := engine.New(cfg)
	if err != nil {
		return err
	}

	if set.metricsAddr != "" {
		server, err := httpapi.NewServer(httpapi.Config{
			Addr: set.metricsAddr,
			Controller: &statusController{
				sup:   sup,
				runID: runID,
				pid:   os.Getpid(),
				now:   time.Now,
			},
		})
		if err != nil {
			return err
		}
		if err := server.Listen(); err != nil {
			return err
		}
		ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
		defer cancel()
		go func() {
			if err := server.Run(ctx); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
		log.WithField("addr", server.Addr()).Debug("serving metrics")
	}

	// Parent-death signals fire when the thread that forked exits, so every
	// launch happens from this one locked thread.
	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()

	if err := sup.Start(set.commands); err != nil {
		log.WithError(err).Error("launch failed")
		return &ExitError{Code: engine.ExitFatal}
	}

	code, err := sup.Run()
	if err != nil {
		if errors.Is(err, engine.ErrSignalsClosed) {
			log.WithError(err).Error("signal delivery stopped")
		} else {
			log.WithError(err).Error("supervision aborted")
		}
		return &ExitError{Code: code}
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// eventSink logs every engine event and mirrors it into the metrics registry.
func eventSink(log logrus.FieldLogger) engine.Sink {
	rec := &metricsRecorder{}
	return func(event engine.Event) {
		cliutil.LogEvent(log, event)
		rec.record(event)
	}
}

// metricsRecorder translates events into metric updates. Escalation phases are
// absorbing, so each broadcast is counted once however many groups it reached.
type metricsRecorder struct {
	shutdown bool
	kill     bool
}

func (r *metricsRecorder) record(event engine.Event) {
	switch event.Type {
	case engine.EventTypeStarted:
		metrics.JobStarted()
	case engine.EventTypeExited:
		metrics.JobExited(event.Reason, event.Elapsed)
	case engine.EventTypeOrphan:
		metrics.OrphanReaped()
	case engine.EventTypeForwarded:
		metrics.SignalForwarded(unix.SignalName(event.Signal))
	case engine.EventTypeShutdown:
		if !r.shutdown {
			r.shutdown = true
			metrics.Escalated("shutdown")
		}
		if event.PID != 0 {
			metrics.SignalForwarded(unix.SignalName(event.Signal))
		}
	case engine.EventTypeKill:
		if !r.kill {
			r.kill = true
			metrics.Escalated("kill")
		}
		metrics.SignalForwarded(unix.SignalName(event.Signal))
	case engine.EventTypeStopped:
		metrics.SetExitCode(event.Status)
	}
}
