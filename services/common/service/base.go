// Package service provides the HTTP shell shared by the GraphQL services:
// middleware chain, standard routes, schema wiring and lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/middleware"
)

const (
	healthCheckTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// BaseConfig describes one GraphQL service.
type BaseConfig struct {
	Name    string
	Version string
	Deps    *Deps
	// Root resolves Query, Mutation and Subscription of the merged Sources.
	Root    interface{}
	Sources []graph.Source
}

// BaseService serves one schema behind the standard middleware chain and
// owns the components the service registers.
type BaseService struct {
	name    string
	version string
	deps    *Deps
	logger  *logging.Logger

	router  *mux.Router
	graphql *graph.Handler
	limiter *middleware.RateLimiter
	server  *http.Server

	mu         sync.Mutex
	components []runtime.Component
	statsFn    func() map[string]any
	addr       string

	stopOnce sync.Once

	healthMu        sync.RWMutex
	dbHealthy       bool
	lastHealthCheck time.Time
	startTime       time.Time
}

// NewBase parses the schema and builds the router.
func NewBase(cfg BaseConfig) (*BaseService, error) {
	if cfg.Deps == nil {
		return nil, fmt.Errorf("service %s: deps are required", cfg.Name)
	}
	logger := cfg.Deps.Logger

	schema, err := graph.Parse(cfg.Root, logger, cfg.Sources...)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", cfg.Name, err)
	}

	b := &BaseService{
		name:      cfg.Name,
		version:   cfg.Version,
		deps:      cfg.Deps,
		logger:    logger,
		router:    mux.NewRouter(),
		graphql:   graph.NewHandler(schema, cfg.Deps.Builder, logger, cfg.Deps.Metrics).WithOriginCheck(Origins(cfg.Deps).Allows),
		limiter:   middleware.NewRateLimiter(APITier(cfg.Deps), logger, cfg.Deps.Metrics),
		dbHealthy: cfg.Deps.DB == nil,
	}
	Instrument(b.router, cfg.Deps, b.limiter)
	b.RegisterStandardRoutes()
	b.router.Handle("/graphql", b.graphql).Methods(http.MethodGet, http.MethodPost, http.MethodOptions)
	return b, nil
}

// APITier is the general request budget, taken from configuration when
// present.
func APITier(d *Deps) middleware.Tier {
	tier := middleware.APITier
	if d.Config != nil {
		if d.Config.RateLimitMax > 0 {
			tier.Limit = d.Config.RateLimitMax
		}
		if d.Config.RateLimitWindow > 0 {
			tier.Window = d.Config.RateLimitWindow
		}
	}
	return tier
}

// Origins is the CORS policy from CORS_ORIGIN; without configuration any
// origin is allowed.
func Origins(d *Deps) *middleware.CORSMiddleware {
	origins := "*"
	if d.Config != nil {
		origins = d.Config.CORSOrigin
	}
	return middleware.NewCORSMiddleware(origins)
}

// Instrument installs the standard middleware chain on r. limiter may be nil.
func Instrument(r *mux.Router, d *Deps, limiter *middleware.RateLimiter) {
	r.Use(middleware.NewTracingMiddleware(d.Logger, "/health", "/metrics").Handler)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(Origins(d).Handler)
	if d.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(d.Metrics))
	}
	r.Use(middleware.NewPrincipalMiddleware(d.Builder).Handler)
	if limiter != nil {
		r.Use(rateLimitExcept(limiter, "/health", "/metrics"))
	}
}

func rateLimitExcept(limiter *middleware.RateLimiter, paths ...string) mux.MiddlewareFunc {
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		limited := limiter.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// Name returns the service name.
func (b *BaseService) Name() string { return b.name }

// Version returns the service version.
func (b *BaseService) Version() string { return b.version }

// Router exposes the router for extra routes.
func (b *BaseService) Router() *mux.Router { return b.router }

// Handler is the root HTTP handler.
func (b *BaseService) Handler() http.Handler { return b.router }

// Deps returns the shared collaborators.
func (b *BaseService) Deps() *Deps { return b.deps }

// WithStats sets a statistics provider for the /info endpoint.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// AddComponent registers a component started with the service and stopped
// before the HTTP server closes.
func (b *BaseService) AddComponent(c ...runtime.Component) *BaseService {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.components = append(b.components, c...)
	return b
}

// Components lists, in start order, the shared infrastructure, the rate
// limiter, the registered components and finally the HTTP server.
func (b *BaseService) Components() []runtime.Component {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.deps.Components()
	out = append(out, runtime.Component{
		Name:  b.name + "-ratelimit",
		Start: func(context.Context) error { b.limiter.Start(); return nil },
		Stop:  func(context.Context) error { b.limiter.Stop(); return nil },
	})
	out = append(out, b.components...)
	out = append(out, runtime.Component{
		Name:  b.name + "-http",
		Start: b.Start,
		Stop:  b.Stop,
	})
	return out
}

// Start listens on the configured port and serves in the background.
func (b *BaseService) Start(context.Context) error {
	addr := ":0"
	if b.deps.Config != nil {
		addr = b.deps.Config.Addr()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	b.healthMu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.healthMu.Unlock()

	b.mu.Lock()
	b.addr = ln.Addr().String()
	b.server = &http.Server{
		Handler:           b.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := b.server
	b.mu.Unlock()

	b.logger.WithFields(map[string]interface{}{
		"service": b.name,
		"addr":    b.addr,
	}).Info("GraphQL service listening")

	runtime.Go(b.logger, b.name+"-http", func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.WithError(err).Error("HTTP server stopped")
		}
	})
	return nil
}

// Addr is the bound listen address once started.
func (b *BaseService) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addr
}

// Stop gracefully shuts the HTTP server down. It is idempotent.
func (b *BaseService) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		b.mu.Lock()
		server := b.server
		b.mu.Unlock()
		if server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		err = server.Shutdown(ctx)
	})
	return err
}

// CheckHealth refreshes the cached database health.
func (b *BaseService) CheckHealth() {
	healthy := true
	if b.deps.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		healthy = b.deps.DB.PingContext(ctx) == nil
	}

	b.healthMu.Lock()
	b.dbHealthy = healthy
	b.lastHealthCheck = time.Now()
	b.healthMu.Unlock()
}

// HealthDetails describes the most recent health state.
func (b *BaseService) HealthDetails() map[string]any {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()

	details := map[string]any{
		"db_connected": b.dbHealthy,
		"last_check":   "",
	}
	if !b.lastHealthCheck.IsZero() {
		details["last_check"] = b.lastHealthCheck.Format(time.RFC3339)
	}
	uptime := time.Duration(0)
	if !b.startTime.IsZero() {
		uptime = time.Since(b.startTime)
	}
	details["uptime"] = uptime.String()
	return details
}
