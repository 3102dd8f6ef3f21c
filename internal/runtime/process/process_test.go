package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/docker/docker/pkg/reexec"
	"golang.org/x/sys/unix"

	"github.com/Paintersrp/subreap/internal/runtime"
)

func TestMain(m *testing.M) {
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

func launch(t *testing.T, spec runtime.Spec) int {
	t.Helper()
	l := NewWithStdio(nil, nil, os.Stderr)
	spawned, err := l.Launch(spec)
	if err != nil {
		t.Fatalf("launch %v: %v", spec.Argv, err)
	}
	if spawned.PID <= 0 {
		t.Fatalf("unexpected pid %d", spawned.PID)
	}
	return spawned.PID
}

func waitPID(t *testing.T, pid int) unix.WaitStatus {
	t.Helper()
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			t.Fatalf("wait4 %d: %v", pid, err)
		}
		return ws
	}
}

func TestLaunchReportsExitStatus(t *testing.T) {
	pid := launch(t, runtime.Spec{Name: "exit3", Argv: []string{"/bin/sh", "-c", "exit 3"}})

	ws := waitPID(t, pid)
	if !ws.Exited() || ws.ExitStatus() != 3 {
		t.Fatalf("expected exit status 3, got %#v", ws)
	}
}

func TestLaunchMissingCommandExits127(t *testing.T) {
	pid := launch(t, runtime.Spec{Name: "missing", Argv: []string{"subreap-test-no-such-command"}})

	ws := waitPID(t, pid)
	if !ws.Exited() || ws.ExitStatus() != ExitNotFound {
		t.Fatalf("expected exit status %d, got %#v", ExitNotFound, ws)
	}
}

func TestLaunchNonExecutableExits126(t *testing.T) {
	script := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	pid := launch(t, runtime.Spec{Name: "noexec", Argv: []string{script}})

	ws := waitPID(t, pid)
	if !ws.Exited() || ws.ExitStatus() != ExitCannotExecute {
		t.Fatalf("expected exit status %d, got %#v", ExitCannotExecute, ws)
	}
}

func TestLaunchStartsOwnSessionAndGroup(t *testing.T) {
	pid := launch(t, runtime.Spec{Name: "sleeper", Argv: []string{"/bin/sh", "-c", "sleep 30"}})

	pgid, err := unix.Getpgid(pid)
	if err != nil {
		t.Fatalf("getpgid: %v", err)
	}
	if pgid != pid {
		t.Fatalf("expected job to lead its own group, pgid=%d pid=%d", pgid, pid)
	}
	if sid, err := unix.Getsid(pid); err != nil || sid != pid {
		t.Fatalf("expected job to lead its own session, sid=%d err=%v", sid, err)
	}
	if pgid == unix.Getpgrp() {
		t.Fatalf("job shares the supervisor's process group")
	}

	if err := SignalGroup(pid, syscall.SIGKILL); err != nil {
		t.Fatalf("signal group: %v", err)
	}
	ws := waitPID(t, pid)
	if !ws.Signaled() || ws.Signal() != syscall.SIGKILL {
		t.Fatalf("expected SIGKILL death, got %#v", ws)
	}
}

func TestLaunchAppliesEnvAndWorkdir(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	script := fmt.Sprintf(`test "$SUBREAP_TEST_VALUE" = alpha && test "$(pwd -P)" = %q`, resolved)

	pid := launch(t, runtime.Spec{
		Name: "env",
		Argv: []string{"/bin/sh", "-c", script},
		Env:  []string{"SUBREAP_TEST_VALUE=alpha"},
		Dir:  dir,
	})

	ws := waitPID(t, pid)
	if !ws.Exited() || ws.ExitStatus() != 0 {
		t.Fatalf("expected env and workdir to be applied, got %#v", ws)
	}
}

func TestExecFailureLogsInSupervisorFormat(t *testing.T) {
	stderr, err := os.Create(filepath.Join(t.TempDir(), "stderr"))
	if err != nil {
		t.Fatalf("create stderr file: %v", err)
	}
	defer stderr.Close()

	l := NewWithStdio(nil, nil, stderr, WithLogging("json", "run-42"))
	spawned, err := l.Launch(runtime.Spec{Name: "missing", Argv: []string{"subreap-test-no-such-command"}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	ws := waitPID(t, spawned.PID)
	if !ws.Exited() || ws.ExitStatus() != ExitNotFound {
		t.Fatalf("expected exit status %d, got %#v", ExitNotFound, ws)
	}

	out, err := os.ReadFile(stderr.Name())
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	for _, want := range []string{`"msg":"exec failed"`, `"run":"run-42"`, `"cmd":"subreap-test-no-such-command"`} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("stderr %q does not contain %s", out, want)
		}
	}
}

func TestLaunchDoesNotLeakTrampolineEnv(t *testing.T) {
	l := NewWithStdio(nil, nil, os.Stderr, WithLogging("json", "run-42"))
	script := `test -z "${SUBREAP_EXEC_LOG_FORMAT-}" && test -z "${SUBREAP_EXEC_RUN-}"`
	spawned, err := l.Launch(runtime.Spec{Name: "env", Argv: []string{"/bin/sh", "-c", script}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	ws := waitPID(t, spawned.PID)
	if !ws.Exited() || ws.ExitStatus() != 0 {
		t.Fatalf("trampoline settings leaked into the job environment: %#v", ws)
	}
}

func TestLaunchRejectsEmptyCommand(t *testing.T) {
	l := NewWithStdio(nil, nil, nil)
	if _, err := l.Launch(runtime.Spec{Name: "empty"}); err == nil {
		t.Fatalf("expected error for empty argv")
	}
}

func TestSignalGroupReportsGone(t *testing.T) {
	pid := launch(t, runtime.Spec{Name: "quick", Argv: []string{"/bin/sh", "-c", "exit 0"}})
	waitPID(t, pid)

	if err := SignalGroup(pid, syscall.SIGTERM); !errors.Is(err, ErrGone) {
		t.Fatalf("expected ErrGone after reaping, got %v", err)
	}
}

func TestSignalGroupRejectsNonPositive(t *testing.T) {
	for _, pgid := range []int{0, -1} {
		if err := SignalGroup(pgid, syscall.SIGTERM); err == nil || errors.Is(err, ErrGone) {
			t.Fatalf("expected invalid group error for %d, got %v", pgid, err)
		}
	}
}

func TestExecFailureCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":          {nil, 0},
		"not found":    {&exec.Error{Name: "x", Err: exec.ErrNotFound}, ExitNotFound},
		"enoent":       {&os.PathError{Op: "exec", Path: "/x", Err: unix.ENOENT}, ExitNotFound},
		"eacces":       {unix.EACCES, ExitCannotExecute},
		"enoexec":      {unix.ENOEXEC, ExitCannotExecute},
		"permission":   {&exec.Error{Name: "/tmp", Err: os.ErrPermission}, ExitCannotExecute},
		"e2big":        {unix.E2BIG, ExitExecFailed},
		"unrecognised": {errors.New("boom"), ExitExecFailed},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			if got := ExecFailureCode(tc.err); got != tc.want {
				t.Fatalf("ExecFailureCode(%v)=%d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
