//go:build !linux && !windows

package process

import (
	"os/exec"
	"syscall"

	"github.com/Paintersrp/subreap/internal/runtime"
)

func configureCmdSysProcAttr(cmd *exec.Cmd, spec runtime.Spec) {
	attr := &syscall.SysProcAttr{}
	if spec.Foreground {
		attr.Setpgid = true
		attr.Foreground = true
		attr.Ctty = 0
	} else {
		attr.Setsid = true
	}
	cmd.SysProcAttr = attr
}
