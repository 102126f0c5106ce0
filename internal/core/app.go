// Package core assembles the shared application components: configuration,
// database, websocket hub, tile engine, background supervisor, and the
// maintenance job manager.
package core

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/tilevault/tilevault-go/internal/background"
	"github.com/tilevault/tilevault-go/internal/config"
	"github.com/tilevault/tilevault-go/internal/db"
	"github.com/tilevault/tilevault-go/internal/engine"
	"github.com/tilevault/tilevault-go/internal/jobs"
	"github.com/tilevault/tilevault-go/internal/platform"
	"github.com/tilevault/tilevault-go/internal/store"
	"github.com/tilevault/tilevault-go/internal/websocket"
	"github.com/tilevault/tilevault-go/migrations"
)

// App holds the core components of the application that are shared between
// the server and the CLI. It implements jobs.JobContext.
type App struct {
	cfg        *config.Config
	database   *sql.DB
	hub        *websocket.Hub
	st         *store.Store
	eng        *engine.Engine
	supervisor *background.Supervisor
	jobManager *jobs.JobManager
	version    string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running
// migrations.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, migrations.FS); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app := NewWith(cfg, database, websocket.NewHub(), version)
	log.Println("Core application setup complete.")
	return app, nil
}

// NewWith assembles an App from already-initialized components. Tests use
// it with an in-memory database and a throwaway hub.
func NewWith(cfg *config.Config, database *sql.DB, hub *websocket.Hub, version string) *App {
	st := store.New(database)
	eng := engine.New(st, nil)

	app := &App{
		cfg:        cfg,
		database:   database,
		hub:        hub,
		st:         st,
		eng:        eng,
		supervisor: background.New(platform.New(), eng),
		version:    version,
	}
	app.jobManager = jobs.NewManager(app)
	jobs.RegisterAll(app.jobManager)
	return app
}

func (a *App) DB() *sql.DB                        { return a.database }
func (a *App) Config() *config.Config             { return a.cfg }
func (a *App) WsHub() *websocket.Hub              { return a.hub }
func (a *App) JobManager() *jobs.JobManager       { return a.jobManager }
func (a *App) Store() *store.Store                { return a.st }
func (a *App) Engine() *engine.Engine             { return a.eng }
func (a *App) Supervisor() *background.Supervisor { return a.supervisor }
func (a *App) Version() string                    { return a.version }

// SetSupervisor swaps in a supervisor built over fake platform bindings.
func (a *App) SetSupervisor(s *background.Supervisor) { a.supervisor = s }

// Close gracefully closes the application's resources, like the DB
// connection.
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
}
