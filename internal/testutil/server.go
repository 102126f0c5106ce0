// A shared test server setup utility, which simplifies all API tests.

package testutil

import (
	"database/sql"
	"testing"

	"github.com/tilevault/tilevault-go/internal/api"
	"github.com/tilevault/tilevault-go/internal/background"
	"github.com/tilevault/tilevault-go/internal/config"
	"github.com/tilevault/tilevault-go/internal/core"
	"github.com/tilevault/tilevault-go/internal/websocket"
)

// SetupTestApp initializes a core.App over an in-memory database with fake
// platform bindings, so background downloads can run in tests on any OS.
func SetupTestApp(t *testing.T) *core.App {
	t.Helper()
	database := SetupTestDB(t)

	cfg := &config.Config{}
	cfg.Provider.Parallelism = 2
	cfg.Notification.Enabled = true

	hub := websocket.NewHub()
	go hub.Run()

	app := core.NewWith(cfg, database, hub, "test")
	app.SetSupervisor(background.New(NewFakePlatform(), app.Engine()))
	return app
}

// SetupTestServer initializes a full core.App and api.Server for
// integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *sql.DB) {
	t.Helper()
	app := SetupTestApp(t)
	return api.NewServer(app), app.DB()
}
