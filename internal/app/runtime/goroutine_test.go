package runtime

import (
	"testing"
	"time"

	"github.com/threadsclone/backend/internal/logging"
)

func TestGo_PanicTerminates(t *testing.T) {
	codes := make(chan int, 1)
	exit = func(code int) { codes <- code }
	defer func() { exit = osExit }()

	Go(logging.NewDiscard(), "test", func() { panic("boom") })

	select {
	case code := <-codes:
		if code != 2 {
			t.Errorf("exit code = %d, want 2", code)
		}
	case <-time.After(time.Second):
		t.Fatal("panic did not terminate")
	}
}

func TestGo_NormalReturn(t *testing.T) {
	exit = func(code int) { t.Errorf("unexpected exit(%d)", code) }
	defer func() { exit = osExit }()

	done := make(chan struct{})
	Go(logging.NewDiscard(), "test", func() { close(done) })
	<-done
	time.Sleep(10 * time.Millisecond)
}
