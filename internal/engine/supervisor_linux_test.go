//go:build linux

package engine

import (
	"os"
	"testing"
	"time"

	"github.com/docker/docker/pkg/reexec"
	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"

	"github.com/Paintersrp/subreap/internal/runtime/process"
)

func TestMain(m *testing.M) {
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

// supervise runs real processes through the full gate, launch and dispatch
// path. Tests using it must not run in parallel: the gate is process wide.
func supervise(t *testing.T, opts Options, commands ...Command) int {
	t.Helper()

	signals, stop, err := Gate()
	assert.NilError(t, err)
	defer stop()

	kernel, err := NewKernel()
	assert.NilError(t, err)
	defer kernel.SetAlarm(0)

	sup, err := New(Config{
		Options:  opts,
		Kernel:   kernel,
		Launcher: process.NewWithStdio(nil, nil, os.Stderr),
		Signals:  signals,
	})
	assert.NilError(t, err)
	assert.NilError(t, sup.Start(commands))

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := sup.Run()
		done <- result{code, err}
	}()

	select {
	case res := <-done:
		assert.NilError(t, res.err)
		return res.code
	case <-time.After(20 * time.Second):
		t.Fatalf("supervisor did not finish")
		return 0
	}
}

func TestSuperviseRealFailingCommand(t *testing.T) {
	code := supervise(t, Options{ShutdownSignal: unix.SIGTERM}, cmd("false", "/bin/sh", "-c", "exit 1"))
	assert.Equal(t, code, 1)
}

func TestSuperviseRealSuccess(t *testing.T) {
	code := supervise(t, Options{ShutdownSignal: unix.SIGTERM}, cmd("true", "/bin/sh", "-c", "exit 0"))
	assert.Equal(t, code, 0)
}

func TestSuperviseRealMissingCommand(t *testing.T) {
	code := supervise(t, Options{}, cmd("missing", "subreap-test-nonexistent-binary"))
	assert.Equal(t, code, process.ExitNotFound)
}

func TestSuperviseRealSignalDeath(t *testing.T) {
	code := supervise(t, Options{}, cmd("suicide", "/bin/sh", "-c", "kill -9 $$"))
	assert.Equal(t, code, 137)
}

func TestSuperviseRealShutdownOnFailure(t *testing.T) {
	code := supervise(t, Options{ShutdownSignal: unix.SIGTERM},
		cmd("broken", "/bin/sh", "-c", "sleep 0.2; exit 2"),
		cmd("server", "/bin/sh", "-c", `trap "exit 0" TERM; while :; do sleep 0.1; done`),
	)
	assert.Equal(t, code, 2)
}

func TestSuperviseRealKillTimeout(t *testing.T) {
	started := time.Now()
	code := supervise(t, Options{ShutdownSignal: unix.SIGTERM, KillTimeout: 500 * time.Millisecond},
		cmd("broken", "/bin/sh", "-c", "sleep 0.2; exit 3"),
		cmd("stubborn", "/bin/sh", "-c", `trap "" TERM; while :; do sleep 0.1; done`),
	)
	assert.Equal(t, code, 3)
	assert.Check(t, time.Since(started) < 10*time.Second)
}

func TestKernelAlarmRoundsUpTinyDelays(t *testing.T) {
	signals, stop, err := Gate()
	assert.NilError(t, err)
	defer stop()

	kernel, err := NewKernel()
	assert.NilError(t, err)
	defer kernel.SetAlarm(0)

	assert.NilError(t, kernel.SetAlarm(500*time.Nanosecond))
	deadline := time.After(5 * time.Second)
	for fired := false; !fired; {
		select {
		case sig := <-signals:
			fired = sig == unix.SIGALRM
		case <-deadline:
			t.Fatalf("alarm never fired")
		}
	}
	expired, err := kernel.AlarmExpired()
	assert.NilError(t, err)
	assert.Check(t, expired)
}
