//go:build linux

package process

import (
	"os/exec"
	"syscall"

	"github.com/Paintersrp/subreap/internal/runtime"
)

func configureCmdSysProcAttr(cmd *exec.Cmd, spec runtime.Spec) {
	attr := &syscall.SysProcAttr{}
	if spec.Foreground {
		// Ctty names the supervisor's stdin; the child moves its new group
		// to the foreground before it unblocks signals, so no SIGTTOU.
		attr.Setpgid = true
		attr.Foreground = true
		attr.Ctty = 0
	} else {
		attr.Setsid = true
	}
	if spec.ParentDeath {
		attr.Pdeathsig = syscall.SIGKILL
	}
	cmd.SysProcAttr = attr
}
