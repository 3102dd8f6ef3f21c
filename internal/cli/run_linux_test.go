//go:build linux

package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/pkg/reexec"

	"github.com/Paintersrp/subreap/internal/pidfile"
)

func TestMain(m *testing.M) {
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

// execute runs the root command end to end. Supervision takes over the test
// process's signals, so callers must not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(envConfig, "")
	t.Setenv(envLogFormat, "")

	cmd := NewRootCmd()
	logs := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return logs.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	return exitErr.Code
}

func TestRunPropagatesExitStatus(t *testing.T) {
	logs, err := execute(t, "--", "/bin/sh", "-c", "exit 3")
	if code := exitCode(t, err); code != 3 {
		t.Fatalf("expected exit code 3, got %d\n%s", code, logs)
	}
	if !strings.Contains(logs, "exit code 3") {
		t.Fatalf("logs do not report the exit code:\n%s", logs)
	}
}

func TestRunSuccess(t *testing.T) {
	logs, err := execute(t, "-c", "/bin/sh -c 'exit 0'", "--", "true")
	if code := exitCode(t, err); code != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", code, logs)
	}
}

func TestRunShutsDownSiblingsOnFailure(t *testing.T) {
	logs, err := execute(t, "-s", "TERM", "-t", "5", "--log-format", "json",
		"/bin/sh", "-c", "sleep 0.2; exit 4", "--", "sleep", "30")
	if code := exitCode(t, err); code != 4 {
		t.Fatalf("expected exit code 4, got %d\n%s", code, logs)
	}
	if !strings.Contains(logs, `"event":"shutdown"`) {
		t.Fatalf("logs do not record the shutdown broadcast:\n%s", logs)
	}
}

func TestRunQuietSuppressesInfo(t *testing.T) {
	logs, err := execute(t, "-qq", "--", "/bin/sh", "-c", "exit 2")
	if code := exitCode(t, err); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if strings.Contains(logs, "started process") {
		t.Fatalf("quiet run still logged info:\n%s", logs)
	}
}

func TestRunWritesPidfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subreap.pid")
	script := "test -s " + path
	logs, err := execute(t, "--pidfile", path, "--", "/bin/sh", "-c", script)
	if code := exitCode(t, err); code != 0 {
		t.Fatalf("pidfile missing while running, exit %d\n%s", code, logs)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("pidfile not removed after run: %v", err)
	}
}

func TestRunRejectsLockedPidfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subreap.pid")
	held, err := pidfile.Acquire(path, os.Getpid())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release()

	_, err = execute(t, "--pidfile", path, "--", "true")
	if !errors.Is(err, pidfile.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
