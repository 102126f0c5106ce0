// Handlers for starting, inspecting and cancelling supervised background
// downloads.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tilevault/tilevault-go/internal/background"
	"github.com/tilevault/tilevault-go/internal/engine"
	"github.com/tilevault/tilevault-go/internal/models"
)

// BackgroundDownloadPayload is the expected structure for starting a
// background download.
type BackgroundDownloadPayload struct {
	Store                string        `json:"store"`
	Region               models.Region `json:"region"`
	DisableNotifications bool          `json:"disable_notifications"`
}

func (s *Server) handleStartBackgroundDownload(w http.ResponseWriter, r *http.Request) {
	var payload BackgroundDownloadPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cfg := s.app.Config()
	jobCfg := background.JobConfig{
		Store:                payload.Store,
		URLTemplate:          cfg.Provider.URLTemplate,
		UserAgent:            cfg.Provider.UserAgent,
		Parallelism:          cfg.Provider.Parallelism,
		Delay:                time.Duration(cfg.Provider.DelayMs) * time.Millisecond,
		DisableNotifications: payload.DisableNotifications || !cfg.Notification.Enabled,
		NotificationTitle:    cfg.Notification.Title,
		NotificationIcon:     cfg.Notification.Icon,
		KeepAliveTitle:       cfg.KeepAlive.Title,
		KeepAliveText:        cfg.KeepAlive.Text,
		KeepAliveIcon:        cfg.KeepAlive.Icon,
	}

	job, err := s.app.Supervisor().StartBackgroundJob(payload.Region, jobCfg)
	if err != nil {
		switch {
		case errors.Is(err, background.ErrUnsupportedPlatform):
			RespondWithError(w, http.StatusNotImplemented, err.Error())
		case errors.Is(err, background.ErrJobAlreadyRunning), errors.Is(err, engine.ErrJobRunning):
			RespondWithError(w, http.StatusConflict, err.Error())
		case errors.Is(err, background.ErrLeaseAcquisitionFailed):
			RespondWithError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, engine.ErrInvalidRegion):
			RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			RespondWithError(w, http.StatusInternalServerError, "Failed to start background download")
		}
		return
	}

	go s.mirrorJobToClients(job)

	RespondWithJSON(w, http.StatusAccepted, job.Status())
}

// mirrorJobToClients relays the job's progress to the websocket hub until
// the job finishes.
func (s *Server) mirrorJobToClients(job *background.Job) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-job.Done():
			st := job.Status()
			s.app.WsHub().BroadcastJSON(models.ProgressUpdate{
				JobID:    job.ID,
				Message:  "Download finished",
				Progress: st.Snapshot.Percentage,
				Status:   string(st.State),
				Done:     true,
			})
			return
		case <-ticker.C:
			snap := job.Snapshot()
			s.app.WsHub().BroadcastJSON(models.ProgressUpdate{
				JobID:    job.ID,
				Message:  "Downloading tiles",
				Progress: snap.Percentage,
				Status:   string(models.JobRunning),
				Done:     false,
			})
		}
	}
}

func (s *Server) handleGetBackgroundDownload(w http.ResponseWriter, r *http.Request) {
	job := s.app.Supervisor().Current()
	if job == nil {
		RespondWithError(w, http.StatusNotFound, "No background download")
		return
	}
	RespondWithJSON(w, http.StatusOK, job.Status())
}

func (s *Server) handleCancelBackgroundDownload(w http.ResponseWriter, r *http.Request) {
	job := s.app.Supervisor().Current()
	if job == nil {
		RespondWithError(w, http.StatusNotFound, "No background download")
		return
	}
	job.Cancel()
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleGetDownloadPermission(w http.ResponseWriter, r *http.Request) {
	request := r.URL.Query().Get("request") == "true"

	granted, err := s.app.Supervisor().QueryOrRequestKeepAlivePermission(request)
	if err != nil {
		if errors.Is(err, background.ErrUnsupportedPlatform) {
			RespondWithError(w, http.StatusNotImplemented, err.Error())
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to query permission")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}
