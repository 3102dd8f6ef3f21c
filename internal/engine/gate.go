package engine

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// gateBuffer bounds how many signals may queue while the dispatch loop is busy.
// os/signal never blocks on a full channel: signals arriving while the buffer
// is full are dropped. A lost SIGCHLD is recovered by the next reap, which
// collects every pending child.
const gateBuffer = 64

// Signals returns every signal the supervisor takes over from default
// handling. Anything outside this set keeps its default disposition.
func Signals() []os.Signal {
	sigs := []os.Signal{
		unix.SIGCHLD,
		unix.SIGHUP,
		unix.SIGINT,
		unix.SIGQUIT,
		unix.SIGTERM,
		unix.SIGUSR1,
		unix.SIGUSR2,
		unix.SIGALRM,
		unix.SIGWINCH,
		unix.SIGCONT,
		unix.SIGPIPE,
		unix.SIGTTIN,
		unix.SIGTTOU,
		unix.SIGTSTP,
	}
	if powerFailSignal != 0 {
		sigs = append(sigs, powerFailSignal)
	}
	return sigs
}

// Gate takes over the supervisor's signals and returns the channel they are
// delivered on along with a function that restores default handling. It must be
// called before any job is launched so no signal slips through between fork and
// the first receive. Children start with default dispositions regardless.
func Gate() (<-chan os.Signal, func(), error) {
	if err := becomeSubreaper(); err != nil {
		return nil, nil, err
	}
	ch := make(chan os.Signal, gateBuffer)
	signal.Notify(ch, Signals()...)
	return ch, func() { signal.Stop(ch) }, nil
}
