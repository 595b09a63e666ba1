package runtime

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/threadsclone/backend/internal/logging"
)

// exit is swapped out by tests.
var (
	osExit = os.Exit
	exit   = osExit
)

// Go runs fn in a new goroutine. A panic escaping fn is logged with its stack
// and terminates the process: background faults are never swallowed.
func Go(log *logging.Logger, name string, fn func()) {
	go func() {
		defer Terminate(log, name)
		fn()
	}()
}

// Terminate is deferred at the top of long-lived goroutines. It is a no-op
// unless the goroutine is panicking.
func Terminate(log *logging.Logger, name string) {
	r := recover()
	if r == nil {
		return
	}
	if log == nil {
		log = logging.Default()
	}
	log.WithField("goroutine", name).
		WithField("stack", string(debug.Stack())).
		Error(fmt.Sprintf("unrecovered panic: %v", r))
	exit(2)
}
