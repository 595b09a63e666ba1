package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/config"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/metrics"
)

// Builder constructs a service over the opened deps.
type Builder func(deps *Deps) (*BaseService, error)

// Main is the process entry point shared by every binary: it loads
// configuration, opens the database and registry, builds the service and
// runs it until SIGINT or SIGTERM. Startup failures exit with status 1.
func Main(name string, defaultPort int, build Builder) {
	if err := run(name, defaultPort, build); err != nil {
		logging.Default().WithError(err).WithField("service", name).Error("Service failed")
		os.Exit(1)
	}
}

func run(name string, defaultPort int, build Builder) error {
	cfg, err := config.Load(name, defaultPort)
	if err != nil {
		return err
	}
	logger := logging.New(name, cfg.LogLevel, cfg.LogFormatOrDefault())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := Open(ctx, cfg, logger, metrics.New(name))
	if err != nil {
		return err
	}
	svc, err := build(deps)
	if err != nil {
		if deps.DB != nil {
			deps.DB.Close()
		}
		return err
	}

	app := runtime.NewApplication(logger)
	app.Attach(svc.Components()...)
	logger.WithFields(map[string]interface{}{
		"version": svc.Version(),
		"port":    cfg.Port,
	}).Infof("Starting %s service", name)
	return app.Run(ctx)
}
