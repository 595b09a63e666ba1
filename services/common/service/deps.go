package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/config"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/mailer"
	"github.com/threadsclone/backend/internal/metrics"
	"github.com/threadsclone/backend/internal/notify"
	"github.com/threadsclone/backend/internal/principal"
	"github.com/threadsclone/backend/internal/pubsub"
	"github.com/threadsclone/backend/internal/pubsub/redisrelay"
	"github.com/threadsclone/backend/internal/storage"
	"github.com/threadsclone/backend/internal/storage/postgres"
	"github.com/threadsclone/backend/internal/token"
)

// Deps are the collaborators shared by every GraphQL service in a process.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
	DB       *sql.DB
	Stores   storage.Stores
	Registry *pubsub.Registry
	Codec    *token.Codec
	Builder  *principal.Builder
	Notifier *notify.Notifier
	Models   *graph.Models
	Mailer   mailer.Sender
}

// Open connects to Postgres, applies migrations and wires Deps for cfg.
// When REDIS_URL is set the registry relays events through Redis so that
// every service process observes the same topics.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) (*Deps, error) {
	codec, err := token.NewCodec(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		return nil, err
	}

	db, err := runtime.OpenDatabase(ctx, runtime.DatabaseConfig{
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var relay pubsub.Relay
	if cfg.RedisURL != "" {
		r, err := redisrelay.New(ctx, cfg.RedisURL, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("redis relay: %w", err)
		}
		relay = r
	}

	registry := pubsub.NewRegistry(pubsub.Options{
		BufferSize: cfg.SubscriptionBuffer,
		Logger:     logger,
		Metrics:    m,
		Relay:      relay,
	})

	deps := Assemble(cfg, logger, m, storage.NewStores(postgres.New(db)), registry, codec)
	deps.DB = db
	return deps, nil
}

// Assemble wires Deps over already constructed stores and registry.
func Assemble(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics, stores storage.Stores, registry *pubsub.Registry, codec *token.Codec) *Deps {
	if logger == nil {
		logger = logging.Default()
	}
	mailCfg := mailer.Config{}
	if cfg != nil {
		mailCfg = mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}
	}
	return &Deps{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Stores:   stores,
		Registry: registry,
		Codec:    codec,
		Builder:  principal.NewBuilder(codec, logger),
		Notifier: notify.New(stores.Notifications, registry, logger, m),
		Models:   graph.NewModels(stores),
		Mailer:   mailer.New(mailCfg, logger),
	}
}

// Components returns the lifecycle of the shared infrastructure: the
// registry, and the database pool when one was opened.
func (d *Deps) Components() []runtime.Component {
	components := []runtime.Component{{
		Name:  "pubsub",
		Start: d.Registry.Start,
		Stop:  func(context.Context) error { return d.Registry.Stop() },
	}}
	if d.DB != nil {
		db := d.DB
		components = append([]runtime.Component{{
			Name: "database",
			Stop: func(context.Context) error { return db.Close() },
		}}, components...)
	}
	return components
}
