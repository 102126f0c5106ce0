// Handlers for the tile store endpoints.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/store"
)

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.store.ListStores()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list stores")
		return
	}
	RespondWithJSON(w, http.StatusOK, stores)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "storeName")
	cs, err := s.store.GetStore(name)
	if err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			RespondWithError(w, http.StatusNotFound, "Store not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch store")
		return
	}
	RespondWithJSON(w, http.StatusOK, cs)
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Name == "" {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cs, err := s.store.CreateStore(payload.Name)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to create store")
		return
	}
	RespondWithJSON(w, http.StatusCreated, cs)
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "storeName")
	if err := s.store.DeleteStore(name); err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			RespondWithError(w, http.StatusNotFound, "Store not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to delete store")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetStoreStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "storeName")
	stats, err := s.store.GetStoreStats(name)
	if err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			RespondWithError(w, http.StatusNotFound, "Store not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to compute store stats")
		return
	}
	RespondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetStoreThumbnail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "storeName")
	thumb, err := s.store.GetStoreThumbnail(name)
	if err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			RespondWithError(w, http.StatusNotFound, "Store not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch thumbnail")
		return
	}
	if len(thumb) == 0 {
		RespondWithError(w, http.StatusNotFound, "Store has no thumbnail")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(thumb)
}

// handleGetTile serves a cached tile as an image. Tiles that were never
// downloaded are a 404, not a fetch trigger; this endpoint never reaches
// out to the provider.
func (s *Server) handleGetTile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "storeName")

	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil || z < 0 {
		RespondWithError(w, http.StatusBadRequest, "Invalid tile coordinates")
		return
	}

	data, err := s.store.GetTile(name, models.Tile{Z: z, X: x, Y: y})
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to read tile")
		return
	}
	if data == nil {
		RespondWithError(w, http.StatusNotFound, "Tile not cached")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

func (s *Server) handleListRecoveryEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListRecoveryEntries()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list recovery entries")
		return
	}
	RespondWithJSON(w, http.StatusOK, entries)
}
