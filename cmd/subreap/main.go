package main

import (
	"github.com/docker/docker/pkg/reexec"

	"github.com/Paintersrp/subreap/internal/cli"
	"github.com/Paintersrp/subreap/internal/metrics"
)

func main() {
	// Launched jobs re-enter the binary to exec their program.
	if reexec.Init() {
		return
	}
	metrics.EmitBuildInfo()
	cli.Execute()
}
