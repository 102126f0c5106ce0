// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tilevault/tilevault-go/internal/core"
	"github.com/tilevault/tilevault-go/internal/store"
	"github.com/tilevault/tilevault-go/internal/websocket"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	db    *sql.DB
	store *store.Store
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:   app,
		db:    app.DB(),
		store: app.Store(),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/version", s.handleGetVersion)
	r.Get("/api/config", s.handleGetConfig)

	r.Route("/api", func(r chi.Router) {
		// Store Routes
		r.Get("/stores", s.handleListStores)
		r.Get("/stores/{storeName}", s.handleGetStore)
		r.Get("/stores/{storeName}/stats", s.handleGetStoreStats)
		r.Get("/stores/{storeName}/thumbnail", s.handleGetStoreThumbnail)
		r.Get("/stores/{storeName}/tiles/{z}/{x}/{y}", s.handleGetTile)

		// Background Download Routes
		r.Post("/downloads/background", s.handleStartBackgroundDownload)
		r.Get("/downloads/background", s.handleGetBackgroundDownload)
		r.Post("/downloads/background/cancel", s.handleCancelBackgroundDownload)
		r.Get("/downloads/permission", s.handleGetDownloadPermission)

		// Recovery Routes
		r.Get("/recovery", s.handleListRecoveryEntries)

		// Admin Routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.AdminAuthMiddleware)

			r.Post("/stores", s.handleCreateStore)
			r.Delete("/stores/{storeName}", s.handleDeleteStore)

			r.Get("/jobs/status", s.handleGetAdminJobsStatus)
			r.Post("/jobs/run", s.handleRunAdminJob)
		})
	})

	// WebSocket route
	r.Get("/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.app.WsHub(), w, r)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
