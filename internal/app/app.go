// Package app provides unified lifecycle management for the Waypoint
// daemon.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	httpapi "github.com/waypointdb/waypoint/internal/api/http"
	"github.com/waypointdb/waypoint/internal/appstate"
	"github.com/waypointdb/waypoint/internal/config"
	"github.com/waypointdb/waypoint/internal/kv"
	"github.com/waypointdb/waypoint/internal/observability"
	"github.com/waypointdb/waypoint/internal/retention"
	"github.com/waypointdb/waypoint/internal/server"
	"github.com/waypointdb/waypoint/internal/table"
	"github.com/waypointdb/waypoint/internal/tracker"
)

// App owns every Waypoint component and their startup/shutdown order.
type App struct {
	cfg     *config.Config
	version string

	// Shared resources
	store    kv.Store
	stats    *observability.OpStats
	manager  *appstate.Manager
	shutdown *server.ShutdownManager

	// Optional collaborators
	source tracker.Source

	// Services
	tracker    *tracker.Tracker
	pruner     *retention.Pruner
	httpServer *server.GracefulHTTPServer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Option configures an App.
type Option func(*App)

// WithPositionSource supplies the platform geolocation source. Without
// one the tracker stays off even when enabled in config.
func WithPositionSource(source tracker.Source) Option {
	return func(a *App) { a.source = source }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(version string) Option {
	return func(a *App) { a.version = version }
}

// New validates the configuration and creates a stopped App.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{
		cfg:     cfg,
		version: "dev",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Manager exposes the state manager, mainly for tests and tooling.
func (a *App) Manager() *appstate.Manager {
	return a.manager
}

// Start initializes the store and starts every configured service.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{})

	if err := a.initStore(ctx); err != nil {
		a.cleanup()
		return err
	}
	if err := a.startTracker(ctx); err != nil {
		a.cleanup()
		return err
	}
	if err := a.startRetention(ctx); err != nil {
		a.cleanup()
		return err
	}
	a.startHTTP(ctx)

	log.Printf("waypoint started: store=%s addr=%s", a.cfg.Store.Backend, a.cfg.HTTP.Addr)
	return nil
}

// initStore opens the key/value primitive and the state manager on top.
func (a *App) initStore(ctx context.Context) error {
	var err error
	switch a.cfg.Store.Backend {
	case "sqlite":
		a.store, err = kv.NewSQLiteStore(a.cfg.Store.Path)
	case "memory":
		a.store = kv.NewMemoryStore()
	default:
		return fmt.Errorf("unsupported store backend: %s", a.cfg.Store.Backend)
	}
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.shutdown.RegisterCloser(a.store)
	log.Printf("store initialized: backend=%s path=%s", a.cfg.Store.Backend, a.cfg.Store.Path)

	a.stats = observability.NewOpStats()
	tableStore := table.NewStore(a.store, table.WithOpStats(a.stats))

	a.manager, err = appstate.New(ctx, tableStore)
	if err != nil {
		return fmt.Errorf("failed to initialize state manager: %w", err)
	}
	return nil
}

// startTracker wires the position source into the location log.
func (a *App) startTracker(ctx context.Context) error {
	if !a.cfg.Tracker.Enabled {
		log.Printf("tracker disabled by configuration")
		return nil
	}
	if a.source == nil {
		log.Printf("tracker enabled but no position source available, skipping")
		return nil
	}

	a.tracker = tracker.New(a.source, a.cfg.Tracker.Interval)
	a.tracker.Subscribe(a.manager.HandlePosition)
	if err := a.tracker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.tracker.Stop()
		return nil
	}))
	log.Printf("tracker started: interval=%s", a.cfg.Tracker.Interval)
	return nil
}

// startRetention launches the log pruner.
func (a *App) startRetention(ctx context.Context) error {
	a.pruner = retention.New(a.manager, a.cfg.Retention.MaxAge, a.cfg.Retention.CheckInterval)
	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start retention pruner: %w", err)
	}
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.pruner.Stop()
		return nil
	}))
	return nil
}

// startHTTP launches the local API server.
func (a *App) startHTTP(ctx context.Context) {
	router := httpapi.NewRouter(a.manager, a.stats, a.version)
	handler := server.ShutdownMiddleware(a.shutdown)(router)

	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.httpServer = server.NewGracefulHTTPServer(srv, a.shutdown)

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil {
			log.Printf("http server failed: %v", err)
			a.cancel()
		}
	}()
	log.Printf("http api listening on %s", a.cfg.HTTP.Addr)
}

// Run starts the app and blocks until a signal or context cancellation
// triggers shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.shutdown.ListenForSignals(ctx)
}

// Stop shuts every service down in reverse startup order.
func (a *App) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(context.Background())
	a.cleanup()
	log.Printf("waypoint stopped")
	return err
}

func (a *App) cleanup() {
	if a.cancel != nil {
		a.cancel()
	}
}
