package runtime

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/logging"
)

func recorder(log *[]string, name string, startErr error) Component {
	return Component{
		Name: name,
		Start: func(context.Context) error {
			if startErr != nil {
				return startErr
			}
			*log = append(*log, "start "+name)
			return nil
		},
		Stop: func(context.Context) error {
			*log = append(*log, "stop "+name)
			return nil
		},
	}
}

func TestApplication_StartStopOrder(t *testing.T) {
	var events []string
	app := NewApplication(logging.NewDiscard())
	app.Attach(recorder(&events, "db", nil), recorder(&events, "registry", nil), recorder(&events, "http", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		app.mu.Lock()
		defer app.mu.Unlock()
		return len(app.started) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{
		"start db", "start registry", "start http",
		"stop http", "stop registry", "stop db",
	}, events)
}

func TestApplication_StartFailureStopsStarted(t *testing.T) {
	var events []string
	boom := stderrors.New("boom")
	app := NewApplication(logging.NewDiscard())
	app.Attach(recorder(&events, "db", nil), recorder(&events, "registry", boom), recorder(&events, "http", nil))

	err := app.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "start registry")
	assert.Equal(t, []string{"start db", "stop db"}, events)
}

func TestOpenDatabase_RequiresDSN(t *testing.T) {
	_, err := OpenDatabase(context.Background(), DatabaseConfig{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfig))
}
