package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/storage"
)

// PurgeSchedule runs the reset token purge at the top of every hour.
const PurgeSchedule = "@hourly"

// Maintenance runs the auth service's scheduled jobs.
type Maintenance struct {
	users  storage.UserStore
	logger *logging.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// NewMaintenance schedules the jobs; nothing runs until Start.
func NewMaintenance(users storage.UserStore, logger *logging.Logger) (*Maintenance, error) {
	m := &Maintenance{
		users:  users,
		logger: logger,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if _, err := m.cron.AddFunc(PurgeSchedule, m.purgeJob); err != nil {
		return nil, fmt.Errorf("schedule reset token purge: %w", err)
	}
	return m, nil
}

func (m *Maintenance) purgeJob() {
	defer runtime.Terminate(m.logger, "auth-purge-reset-tokens")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := m.PurgeResetTokens(ctx); err != nil {
		m.logger.WithError(err).Error("Reset token purge failed")
	}
}

// PurgeResetTokens clears reset tokens whose expiry has passed.
func (m *Maintenance) PurgeResetTokens(ctx context.Context) (int64, error) {
	n, err := m.users.PurgeExpiredResetTokens(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.WithField("count", n).Info("Purged expired reset tokens")
	}
	return n, nil
}

// Component runs the scheduler with the service.
func (m *Maintenance) Component() runtime.Component {
	return runtime.Component{
		Name: "auth-maintenance",
		Start: func(context.Context) error {
			m.cron.Start()
			return nil
		},
		Stop: func(ctx context.Context) error {
			select {
			case <-m.cron.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}
