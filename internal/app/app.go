// Package app wires the store, network monitor, sync engine, and
// scheduler into one application instance shared by the CLI commands.
package app

import (
	"context"
	"fmt"

	"github.com/satchel-app/satchel/internal/api"
	"github.com/satchel-app/satchel/internal/capture"
	"github.com/satchel-app/satchel/internal/config"
	"github.com/satchel-app/satchel/internal/events"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/netmon"
	"github.com/satchel-app/satchel/internal/store"
	"github.com/satchel-app/satchel/internal/syncer"
)

// App is the assembled application.
type App struct {
	cfg       *config.Config
	store     *store.Store
	bus       *events.Bus
	monitor   *netmon.Monitor
	engine    *syncer.Engine
	scheduler *syncer.Scheduler
	recorder  *capture.Recorder
}

// New builds an App from configuration. The store is opened (and migrated)
// here; Start only launches background work.
func New(cfg *config.Config) (*App, error) {
	paths := config.GetPaths(cfg)

	dbCfg := store.DefaultConfig(paths.Database)
	dbCfg.Debug = cfg.Debug
	st, err := store.New(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bus := events.NewBus()
	monitor := netmon.New(true)

	factory := func(token string) syncer.API {
		return api.NewClient(cfg.Server.URL, token, cfg.Server.RateLimit)
	}
	engine := syncer.New(st, bus, syncer.DefaultRegistry(), factory, syncer.Config{})
	scheduler := syncer.NewScheduler(engine, monitor, bus, cfg.Sync.Interval)

	return &App{
		cfg:       cfg,
		store:     st,
		bus:       bus,
		monitor:   monitor,
		engine:    engine,
		scheduler: scheduler,
		recorder:  capture.NewRecorder(st, bus),
	}, nil
}

// Start launches background synchronization.
func (a *App) Start(ctx context.Context) {
	a.scheduler.Start(ctx)
}

// Stop halts background work and closes the store.
func (a *App) Stop() error {
	a.scheduler.Stop()
	return a.store.Close()
}

// Store returns the durable store.
func (a *App) Store() *store.Store { return a.store }

// Engine returns the sync engine.
func (a *App) Engine() *syncer.Engine { return a.engine }

// Scheduler returns the background scheduler.
func (a *App) Scheduler() *syncer.Scheduler { return a.scheduler }

// Recorder returns the offline mutation recorder.
func (a *App) Recorder() *capture.Recorder { return a.recorder }

// Monitor returns the network state monitor.
func (a *App) Monitor() *netmon.Monitor { return a.monitor }

// Bus returns the event bus.
func (a *App) Bus() *events.Bus { return a.bus }

// Login authenticates against the server and stores the resulting user
// context for subsequent syncs.
func (a *App) Login(ctx context.Context, username, password string, schoolID int64) (*models.UserContext, error) {
	client := api.NewClient(a.cfg.Server.URL, "", a.cfg.Server.RateLimit)
	userCtx, err := client.Login(ctx, username, password, schoolID)
	if err != nil {
		return nil, err
	}
	if err := a.store.SetUserContext(userCtx); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	return userCtx, nil
}

// Logout signs out of the server, then wipes local data. The wipe happens
// only after the server acknowledges the logout; if the request fails the
// local store, queue included, is left intact so nothing captured offline
// is lost.
func (a *App) Logout(ctx context.Context) error {
	userCtx, err := a.store.UserContext()
	if err != nil {
		return fmt.Errorf("load user context: %w", err)
	}
	if userCtx == nil {
		return fmt.Errorf("not logged in")
	}

	client := api.NewClient(a.cfg.Server.URL, userCtx.Token, a.cfg.Server.RateLimit)
	if err := client.Logout(ctx); err != nil {
		return fmt.Errorf("server logout: %w", err)
	}

	a.scheduler.Stop()

	if err := a.store.ClearUserContext(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	// Best effort: wipe failures are logged per table and reported, but
	// the logout itself has already succeeded.
	return a.store.ClearAllData()
}
