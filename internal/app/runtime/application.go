package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/logging"
)

const (
	// DatabasePingTimeout bounds the startup connection check.
	DatabasePingTimeout = 5 * time.Second

	defaultStopTimeout = 10 * time.Second
)

// Component is one long-lived part of a process. Components start in
// registration order and stop in reverse.
type Component struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// Application manages the lifecycle of a process's components.
type Application struct {
	log         *logging.Logger
	stopTimeout time.Duration

	mu         sync.Mutex
	components []Component
	started    []Component
}

// NewApplication creates an empty application.
func NewApplication(log *logging.Logger) *Application {
	if log == nil {
		log = logging.Default()
	}
	return &Application{log: log, stopTimeout: defaultStopTimeout}
}

// Attach registers components. It must be called before Run.
func (a *Application) Attach(components ...Component) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.components = append(a.components, components...)
}

// Run starts every component and blocks until ctx is cancelled, then shuts
// down. A component that fails to start stops the ones already running.
func (a *Application) Run(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.Shutdown(context.Background())
		return err
	}
	a.log.WithField("components", len(a.started)).Info("Application started")

	<-ctx.Done()
	a.Shutdown(context.Background())
	return nil
}

func (a *Application) start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.components {
		if c.Start != nil {
			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("start %s: %w", c.Name, err)
			}
		}
		a.started = append(a.started, c)
		a.log.WithField("component", c.Name).Debug("Component started")
	}
	return nil
}

// Shutdown stops started components in reverse order within the stop
// timeout. Stop errors are logged and do not interrupt the sequence.
func (a *Application) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.stopTimeout)
	defer cancel()

	a.mu.Lock()
	started := a.started
	a.started = nil
	a.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		c := started[i]
		if c.Stop == nil {
			continue
		}
		if err := c.Stop(ctx); err != nil {
			a.log.WithError(err).WithField("component", c.Name).Warn("Component stop failed")
		}
	}
}

// DatabaseConfig configures OpenDatabase.
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// OpenDatabase opens a Postgres pool and pings it within
// DatabasePingTimeout. Failure is fatal for the caller.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.Config("database dsn not configured")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, DatabasePingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
