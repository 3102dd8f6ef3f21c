package config

import (
	"fmt"
	"strings"

	mobysignal "github.com/moby/sys/signal"
	"golang.org/x/sys/unix"
)

// ShutdownSignals lists the signals that may be configured for shutdown.
var ShutdownSignals = []string{"INT", "TERM", "KILL", "QUIT", "HUP", "USR1", "USR2"}

// ParseSignal resolves a shutdown signal name such as "TERM", "sigterm" or
// "15". An empty name means no shutdown signal and yields zero.
func ParseSignal(name string) (unix.Signal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}
	sig, err := mobysignal.ParseSignal(name)
	if err != nil {
		return 0, fmt.Errorf("unknown signal %q (expected one of %s)", name, strings.Join(ShutdownSignals, ", "))
	}
	for _, allowed := range ShutdownSignals {
		if mobysignal.SignalMap[allowed] == sig {
			return sig, nil
		}
	}
	return 0, fmt.Errorf("signal %q cannot be used for shutdown (expected one of %s)", name, strings.Join(ShutdownSignals, ", "))
}
